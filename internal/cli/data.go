package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/profile"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// Export formats.
const (
	formatCSV  = "csv"
	formatJSON = "json"
	formatYAML = "yaml"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts for the active profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var st catalog.Stats
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				st = s.Catalog.Stats()
				return nil
			})
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), st, func(w io.Writer) error {
				fmt.Fprintf(w, "Collection:      %s (%s)\n", plural(st.Collection, "copy"), plural(st.Discs, "disc"))
				fmt.Fprintf(w, "Wishlist:        %s\n", plural(st.Wishlist, "copy"))
				fmt.Fprintf(w, "Unresolved:      %s\n", plural(st.Unresolved, "copy"))
				fmt.Fprintf(w, "Titles:          %d\n", st.Titles)
				fmt.Fprintf(w, "Custom editions: %d\n", st.CustomEditions)
				if err := breakdown(w, "Formats", st.Formats); err != nil {
					return err
				}
				return breakdown(w, "Languages", st.Languages)
			})
		}),
	}
}

// breakdown prints counts largest first, ties by name.
func breakdown(w io.Writer, label string, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	keys := slices.SortedFunc(maps.Keys(counts), func(x, y string) int {
		if counts[x] != counts[y] {
			return counts[y] - counts[x]
		}
		return strings.Compare(x, y)
	})

	fmt.Fprintf(w, "%s:\n", label)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "  %-14s %d\n", orDash(k), counts[k]); err != nil {
			return err
		}
	}
	return nil
}

func newExportCmd(a *app) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the active profile as CSV, JSON or YAML",
		Long: `Writes the active profile to standard output or to --out.

CSV holds one row per copy with its title data. JSON is the same document the
server stores as a backup and can be imported again; YAML holds the same document.`,
		Example: `  cineshelf export --format csv --out shelf.csv
  cineshelf export --format json > backup.json`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case formatCSV, formatJSON, formatYAML:
			default:
				return domainerrors.Validationf("unknown export format %q", format)
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				if format == formatCSV {
					return s.Catalog.ExportCSV(w)
				}
				user := s.Profile.Namespace
				doc := snapshot.NewDocument(user, s.Catalog.Data(), "", time.Now().UTC().Truncate(time.Millisecond))
				if format == formatJSON {
					return doc.Encode(w)
				}
				return encodeYAML(w, doc)
			})
			if err != nil {
				return err
			}

			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", out)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatCSV, "Export format: csv, json or yaml")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of standard output")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load copies from a CSV file or a JSON/YAML document",
		Long: `CSV rows are appended to the active profile as new copies; rows with an
External_ID are linked to that title. A JSON or YAML document replaces the
active profile the same way a restore does, after taking a safety snapshot.

The format comes from the file extension unless --format is given.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
				if format == "yml" {
					format = formatYAML
				}
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			switch format {
			case formatCSV:
				return a.importCSV(cmd, f)
			case formatJSON, formatYAML:
				return a.importDocument(cmd, f, format, path)
			default:
				return domainerrors.Validationf("cannot tell the format of %s, pass --format", path)
			}
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format: csv, json or yaml")
	return cmd
}

func (a *app) importCSV(cmd *cobra.Command, r io.Reader) error {
	var res *catalog.ImportResult
	err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
		var err error
		res, err = s.Catalog.ImportCSV(ctx, r)
		return err
	})
	if err != nil {
		return err
	}
	return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Imported %s (%d linked, %d skipped rows), %s\n",
			plural(res.Copies, "copy"), res.Linked, res.Skipped, plural(res.Titles, "title"))
		return err
	})
}

func (a *app) importDocument(cmd *cobra.Command, r io.Reader, format, source string) error {
	var doc *snapshot.Document
	if format == formatJSON {
		var err error
		if doc, err = snapshot.Decode(r); err != nil {
			return err
		}
	} else {
		doc = &snapshot.Document{}
		if err := yaml.NewDecoder(r).Decode(doc); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeValidation, "file is not a valid document")
		}
	}

	coord, err := a.coordinator()
	if err != nil {
		return err
	}
	res, err := coord.ImportDocument(cmd.Context(), doc, source)
	if err != nil {
		return err
	}
	return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
		return printRestore(w, res)
	})
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every copy, title and custom edition of the active profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if !yes {
				return domainerrors.Validation("clear deletes all data of the active profile; pass --yes to confirm")
			}
			var name string
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				name = s.Profile.Name
				if err := s.Catalog.Clear(ctx); err != nil {
					return err
				}
				s.Resolver.Reset()
				return nil
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), map[string]string{"cleared": name}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Cleared profile %q\n", name)
				return err
			})
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")
	return cmd
}
