// Package cli implements the cineshelf command line client.
package cli

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cineshelfapp/cineshelf/internal/backup"
	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/di"
	"github.com/cineshelfapp/cineshelf/internal/di/providers"
	"github.com/cineshelfapp/cineshelf/internal/metadata"
	"github.com/cineshelfapp/cineshelf/internal/profile"
)

// app carries the state shared by every command of one invocation.
type app struct {
	overrides config.Overrides
	output    string

	cfg      *config.Config
	injector *do.RootScope
}

// NewRootCmd builds the cineshelf command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "cineshelf",
		Short: "Track a movie collection and wishlist, one profile per viewer",
		Long: `CineShelf keeps a local catalog of physical copies and wishlist items.

Copies are linked to titles from the shared title catalog of a CineShelf server,
and each profile can be backed up to and restored from that server.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.overrides.DataDir, "data-dir", "", "Local data directory (default: ~/.cineshelf)")
	f.StringVar(&a.overrides.ServerURL, "server", "", "CineShelf server URL (default: http://localhost:8080)")
	f.StringVar(&a.overrides.RequestTimeout, "timeout", "", "Timeout per server request (default: 15s)")
	f.StringVar(&a.overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&a.overrides.EnvFile, "env-file", ".env", "Path to .env file")
	f.StringVarP(&a.output, "output", "o", outputText, "Output format: text, json or yaml")

	cmd.AddCommand(
		newAddCmd(a),
		newEditCmd(a),
		newRemoveCmd(a),
		newMoveCmd(a),
		newListCmd(a),
		newTitlesCmd(a),
		newResolveCmd(a),
		newProfileCmd(a),
		newEditionsCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newRestoreSafetyCmd(a),
		newStatusCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newClearCmd(a),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	switch a.output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	o := a.overrides
	o.DefaultLogLevel = "warn"

	cfg, err := config.Load(o)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.injector = di.NewClientContainer(cfg)
	return nil
}

// close shuts the container down, flushing the active profile and closing the store.
func (a *app) close() error {
	if a.injector == nil {
		return nil
	}
	injector := a.injector
	a.injector = nil
	if report := injector.Shutdown(); !report.Succeed {
		return report
	}
	return nil
}

// run wraps a command body so the container is shut down however the command ends.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) manager() (*profile.Manager, error) {
	h, err := do.Invoke[*providers.ProfileManagerHandle](a.injector)
	if err != nil {
		return nil, err
	}
	return h.Manager, nil
}

// session runs fn with exclusive access to the active profile.
func (a *app) session(ctx context.Context, fn func(ctx context.Context, s *profile.Session) error) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	return m.Do(ctx, fn)
}

func (a *app) coordinator() (*backup.Coordinator, error) {
	return do.Invoke[*backup.Coordinator](a.injector)
}

func (a *app) titleClient() (*metadata.Client, error) {
	return do.Invoke[*metadata.Client](a.injector)
}
