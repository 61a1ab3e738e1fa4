package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cineshelfapp/cineshelf/internal/backup"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/profile"
)

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload the active profile to the server",
		Long: `Uploads the active profile to the first backup endpoint that accepts it.
Endpoints are derived from --server unless CINESHELF_BACKUP_ENDPOINTS lists them.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			coord, err := a.coordinator()
			if err != nil {
				return err
			}
			res, err := coord.Backup(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				for _, at := range res.Attempts {
					fmt.Fprintf(w, "Skipped %s: %s\n", at.Endpoint, at.Error)
				}
				_, err := fmt.Fprintf(w, "Backed up %s and %s to %s as %s\n",
					plural(res.Copies, "copy"), plural(res.Titles, "title"), res.Endpoint, res.Filename)
				return err
			})
		}),
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var opts backup.RestoreOptions

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the active profile with its backup on the server",
		Long: `Downloads the backup of the active profile and replaces the local data with it.
The current data is kept as a safety snapshot first; restore-safety brings it back.`,
		Example: `  cineshelf restore
  cineshelf restore --file cineshelf_backup_kids.json`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			coord, err := a.coordinator()
			if err != nil {
				return err
			}
			res, err := coord.Restore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				return printRestore(w, res)
			})
		}),
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "Restore this backup file instead of looking one up by profile name")
	return cmd
}

func newRestoreSafetyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-safety",
		Short: "Undo the last restore or import",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			coord, err := a.coordinator()
			if err != nil {
				return err
			}
			res, err := coord.RestoreSafety(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				return printRestore(w, res)
			})
		}),
	}
}

func printRestore(w io.Writer, res *backup.RestoreResult) error {
	if res.Repaired > 0 {
		fmt.Fprintf(w, "Repaired %s while loading\n", plural(res.Repaired, "record"))
	}
	from := res.Source
	if res.Filename != "" {
		from = res.Filename + " from " + res.Source
	}
	_, err := fmt.Fprintf(w, "Restored %s, %s and %s from %s\n",
		plural(res.Copies, "copy"), plural(res.Titles, "title"),
		plural(res.CustomEditions, "custom edition"), from)
	return err
}

// statusView summarizes the active profile.
type statusView struct {
	Profile    string               `json:"profile" yaml:"profile"`
	Server     string               `json:"server" yaml:"server"`
	Copies     int                  `json:"copies" yaml:"copies"`
	Wishlist   int                  `json:"wishlist" yaml:"wishlist"`
	Unresolved int                  `json:"unresolved" yaml:"unresolved"`
	LastBackup *domain.BackupRecord `json:"lastBackup" yaml:"lastBackup"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active profile and its last backup",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			view := statusView{Server: a.cfg.Client.ServerURL}
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				st := s.Catalog.Stats()
				view.Profile = s.Profile.Name
				view.Copies = st.Collection
				view.Wishlist = st.Wishlist
				view.Unresolved = st.Unresolved

				rec, err := s.Catalog.LastBackup(ctx)
				switch {
				case err == nil:
					view.LastBackup = rec
				case !domainerrors.Is(err, domainerrors.ErrNotFound):
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				fmt.Fprintf(w, "Profile:     %s\n", view.Profile)
				fmt.Fprintf(w, "Server:      %s\n", view.Server)
				fmt.Fprintf(w, "Collection:  %s\n", plural(view.Copies, "copy"))
				fmt.Fprintf(w, "Wishlist:    %s\n", plural(view.Wishlist, "copy"))
				fmt.Fprintf(w, "Unresolved:  %s\n", plural(view.Unresolved, "copy"))
				if view.LastBackup == nil {
					_, err := fmt.Fprintln(w, "Last backup: never")
					return err
				}
				b := view.LastBackup
				_, err := fmt.Fprintf(w, "Last backup: %s (%s, %s) to %s\n",
					b.Timestamp.Local().Format(time.DateTime), plural(b.ItemCount, "copy"),
					plural(b.TitleCount, "title"), b.Endpoint)
				return err
			})
		}),
	}
}
