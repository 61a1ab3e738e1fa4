package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/profile"
)

// findCopy accepts a full copy id or an unambiguous prefix of one.
func findCopy(c *catalog.Catalog, ref string) (*domain.Copy, error) {
	if cp, err := c.Copy(ref); err == nil {
		return cp, nil
	}

	var matches []domain.Copy
	for _, cp := range c.ListCopies(catalog.FilterAll) {
		if strings.HasPrefix(cp.ID, ref) || strings.HasPrefix(strings.TrimPrefix(cp.ID, "copy-"), ref) {
			matches = append(matches, cp)
		}
	}
	switch len(matches) {
	case 0:
		return nil, domainerrors.NotFoundf("copy %q not found", ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, domainerrors.Validationf("copy id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func newAddCmd(a *app) *cobra.Command {
	var in catalog.NewCopy

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a copy to the collection or the wishlist",
		Long: `Adds a copy. When a title with the same name is already in the profile the copy is
linked to it right away; otherwise it waits in the resolve queue.`,
		Example: `  cineshelf add "The Matrix" --format Blu-ray --edition "Special Edition"
  cineshelf add Heat --wishlist`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")

			var added *domain.Copy
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				var err error
				added, err = s.Catalog.AddCopy(ctx, in)
				return err
			})
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), added, func(w io.Writer) error {
				status := "unresolved"
				if added.Resolved {
					status = "linked to " + added.TitleRef
				}
				_, err := fmt.Fprintf(w, "Added %s %q (%s)\n", added.ID, added.Title, status)
				return err
			})
		}),
	}

	f := cmd.Flags()
	f.StringVar(&in.Format, "format", "", "Format such as DVD, Blu-ray or 4K (default: Unknown)")
	f.StringVar(&in.Region, "region", "", "Region code")
	f.StringVar(&in.Edition, "edition", "", "Edition name")
	f.StringVar(&in.Languages, "languages", "", "Comma-separated audio languages")
	f.StringVar(&in.Notes, "notes", "", "Free-form notes")
	f.StringVar(&in.UPC, "upc", "", "Barcode")
	f.IntVar(&in.DiscCount, "discs", domain.MinDiscCount, "Number of discs")
	f.BoolVar(&in.IsWishlist, "wishlist", false, "Add to the wishlist instead of the collection")

	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var (
		title, format, region, edition, languages, notes, upc string
		discs                                                 int
	)

	cmd := &cobra.Command{
		Use:     "edit <copy-id>",
		Short:   "Change the fields of a copy",
		Example: `  cineshelf edit V1StGX --format 4K --discs 2`,
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var patch catalog.CopyPatch
			flags := cmd.Flags()
			for name, dst := range map[string]**string{
				"title":     &patch.Title,
				"format":    &patch.Format,
				"region":    &patch.Region,
				"edition":   &patch.Edition,
				"languages": &patch.Languages,
				"notes":     &patch.Notes,
				"upc":       &patch.UPC,
			} {
				if flags.Changed(name) {
					v, _ := flags.GetString(name)
					*dst = &v
				}
			}
			if flags.Changed("discs") {
				patch.DiscCount = &discs
			}
			if patch == (catalog.CopyPatch{}) {
				return domainerrors.Validation("nothing to change: pass at least one field flag")
			}

			var updated *domain.Copy
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				cp, err := findCopy(s.Catalog, args[0])
				if err != nil {
					return err
				}
				updated, err = s.Catalog.UpdateCopy(ctx, cp.ID, patch)
				return err
			})
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), updated, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated %s %q\n", updated.ID, updated.Title)
				return err
			})
		}),
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "Title")
	f.StringVar(&format, "format", "", "Format")
	f.StringVar(&region, "region", "", "Region code")
	f.StringVar(&edition, "edition", "", "Edition name")
	f.StringVar(&languages, "languages", "", "Comma-separated audio languages")
	f.StringVar(&notes, "notes", "", "Free-form notes")
	f.StringVar(&upc, "upc", "", "Barcode")
	f.IntVar(&discs, "discs", domain.MinDiscCount, "Number of discs")

	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <copy-id>",
		Aliases: []string{"remove"},
		Short:   "Delete a copy",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var removed *domain.Copy
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				cp, err := findCopy(s.Catalog, args[0])
				if err != nil {
					return err
				}
				removed = cp
				return s.Catalog.DeleteCopy(ctx, cp.ID)
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), removed, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Removed %s %q\n", removed.ID, removed.Title)
				return err
			})
		}),
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <copy-id>",
		Short: "Move a copy between the collection and the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var moved *domain.Copy
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				cp, err := findCopy(s.Catalog, args[0])
				if err != nil {
					return err
				}
				moved, err = s.Catalog.MoveCopy(ctx, cp.ID)
				return err
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), moved, func(w io.Writer) error {
				where := "collection"
				if moved.IsWishlist {
					where = "wishlist"
				}
				_, err := fmt.Fprintf(w, "Moved %q to the %s\n", moved.Title, where)
				return err
			})
		}),
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		wishlist, all bool
		sortKey       string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List copies of the active profile",
		Long: `Lists the collection, the wishlist, or both.

Sort keys: title, year, rating, runtime, director, genre, format, added.
Append -desc for descending order, for example year-desc.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			filter := catalog.FilterCollection
			switch {
			case all:
				filter = catalog.FilterAll
			case wishlist:
				filter = catalog.FilterWishlist
			}

			var (
				copies []domain.Copy
				titles map[string]*domain.Title
			)
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				copies = s.Catalog.Sort(s.Catalog.ListCopies(filter), sortKey)
				data := s.Catalog.Data()
				titles = data.TitleIndex()
				return nil
			})
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), copies, func(w io.Writer) error {
				if len(copies) == 0 {
					_, err := fmt.Fprintln(w, "No copies.")
					return err
				}
				rows := make([][]string, 0, len(copies))
				for _, cp := range copies {
					year := "-"
					if t := titles[cp.TitleRef]; t != nil && t.Year > 0 {
						year = strconv.Itoa(t.Year)
					}
					status := "resolved"
					if !cp.Resolved {
						status = "unresolved"
					}
					if cp.IsWishlist {
						status += ", wishlist"
					}
					rows = append(rows, []string{
						cp.ID, cp.Title, year, cp.Format, orDash(cp.Edition), strconv.Itoa(cp.DiscCount), status,
					})
				}
				return table(w, []string{"id", "title", "year", "format", "edition", "discs", "status"}, rows)
			})
		}),
	}

	f := cmd.Flags()
	f.BoolVar(&wishlist, "wishlist", false, "List the wishlist")
	f.BoolVar(&all, "all", false, "List the collection and the wishlist")
	f.StringVar(&sortKey, "sort", "title", "Sort key")
	cmd.MarkFlagsMutuallyExclusive("wishlist", "all")

	return cmd
}

func newTitlesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "titles",
		Short: "List the titles of the active profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var titles []domain.Title
			err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				titles = s.Catalog.Titles()
				return nil
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), titles, func(w io.Writer) error {
				return titleTable(w, titles)
			})
		}),
	}

	cmd.AddCommand(newTitlesSearchCmd(a), newTitlesLookupCmd(a))
	return cmd
}

func newTitlesSearchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the server's shared title catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			client, err := a.titleClient()
			if err != nil {
				return err
			}
			hits, err := client.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), hits, func(w io.Writer) error {
				if len(hits) == 0 {
					_, err := fmt.Fprintln(w, "No matches.")
					return err
				}
				rows := make([][]string, 0, len(hits))
				for _, h := range hits {
					rows = append(rows, []string{h.ExternalID, h.Name, yearCell(h.Year), orDash(h.Director)})
				}
				return table(w, []string{"id", "name", "year", "director"}, rows)
			})
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	return cmd
}

func newTitlesLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Find a title in the server's shared catalog by its exact name",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			client, err := a.titleClient()
			if err != nil {
				return err
			}
			t, err := client.Lookup(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), t, func(w io.Writer) error {
				return titleTable(w, []domain.Title{*t})
			})
		}),
	}
}

func titleTable(w io.Writer, titles []domain.Title) error {
	if len(titles) == 0 {
		_, err := fmt.Fprintln(w, "No titles.")
		return err
	}
	rows := make([][]string, 0, len(titles))
	for _, t := range titles {
		rating := "-"
		if t.Rating > 0 {
			rating = strconv.FormatFloat(t.Rating, 'f', 1, 64)
		}
		rows = append(rows, []string{t.ExternalID, t.Name, yearCell(t.Year), rating, orDash(t.Director), orDash(t.Genre)})
	}
	return table(w, []string{"id", "name", "year", "rating", "director", "genre"}, rows)
}

func yearCell(year int) string {
	if year <= 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
