package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/metadata"
	"github.com/cineshelfapp/cineshelf/internal/profile"
	"github.com/cineshelfapp/cineshelf/internal/resolve"
)

const resolveHelp = `Commands:
  lookup [name]          find the title by exact name (default: the copy's title)
  search [query]         full-text search of the shared catalog
  pick <n>               link to result n of the last search
  link <id>              link to a title by external id
  new <id> <name>        create a title, share it with the server, and link to it
  set <field>=<value>    edit the copy (title, format, region, edition, languages, notes, upc, discs)
  skip                   leave this copy for later
  delete                 delete this copy
  quit                   stop resolving
`

// resolveSession is one interactive run of the resolve workflow.
type resolveSession struct {
	out     io.Writer
	engine  *resolve.Engine
	catalog *catalog.Catalog
	titles  *metadata.Client
	hits    []metadata.SearchHit
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [copy-id]",
		Short: "Link unresolved copies to titles, one at a time",
		Long: `Walks the unresolved copies in the order they were added and links each one
to a title from the server's shared catalog. Commands are read from standard input.

` + resolveHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			client, err := a.titleClient()
			if err != nil {
				return err
			}

			return a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
				rs := &resolveSession{
					out:     cmd.OutOrStdout(),
					engine:  s.Resolver,
					catalog: s.Catalog,
					titles:  client,
				}
				defer s.Resolver.Reset()

				if len(args) == 1 {
					cp, err := findCopy(s.Catalog, args[0])
					if err != nil {
						return err
					}
					if _, err := s.Resolver.Start(cp.ID); err != nil {
						return err
					}
				} else if _, ok := s.Resolver.Next(); !ok {
					fmt.Fprintln(rs.out, "Nothing to resolve.")
					return nil
				}

				return rs.loop(ctx, cmd.InOrStdin())
			})
		}),
	}
}

func (rs *resolveSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	rs.show()

	for {
		if _, ok := rs.engine.Form(); !ok {
			p := rs.engine.Progress()
			fmt.Fprintf(rs.out, "Done. %s still unresolved, %s skipped.\n",
				plural(p.TotalUnresolved, "copy"), plural(p.Skipped, "copy"))
			return nil
		}

		fmt.Fprint(rs.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(rs.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		verb, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		rest = strings.TrimSpace(rest)

		advanced, quit, err := rs.dispatch(ctx, strings.ToLower(verb), rest)
		if quit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(rs.out, "Error: %v\n", err)
			continue
		}
		if advanced {
			rs.hits = nil
			rs.show()
		}
	}
}

// dispatch runs one command. advanced reports whether the engine moved to another copy.
func (rs *resolveSession) dispatch(ctx context.Context, verb, rest string) (advanced, quit bool, err error) {
	form, _ := rs.engine.Form()

	switch verb {
	case "":
		return false, false, nil

	case "help", "?":
		fmt.Fprint(rs.out, resolveHelp)
		return false, false, nil

	case "quit", "q", "exit":
		return false, true, nil

	case "skip", "s":
		return true, false, rs.engine.Skip()

	case "delete":
		return true, false, rs.engine.DeleteCurrent(ctx)

	case "lookup", "l":
		name := rest
		if name == "" {
			name = form.Title
		}
		t, err := rs.titles.Lookup(ctx, name)
		if err != nil {
			return false, false, err
		}
		return rs.link(ctx, *t)

	case "search", "find":
		query := rest
		if query == "" {
			query = form.Title
		}
		hits, err := rs.titles.Search(ctx, query, 10)
		if err != nil {
			return false, false, err
		}
		rs.hits = hits
		if len(hits) == 0 {
			fmt.Fprintln(rs.out, "No matches.")
		}
		for i, h := range hits {
			fmt.Fprintf(rs.out, "  %d. %s (%s) %s\n", i+1, h.Name, yearCell(h.Year), h.ExternalID)
		}
		return false, false, nil

	case "pick", "p":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > len(rs.hits) {
			return false, false, domainerrors.Validationf("pick a number between 1 and %d", len(rs.hits))
		}
		t, err := rs.titles.Get(ctx, rs.hits[n-1].ExternalID)
		if err != nil {
			return false, false, err
		}
		return rs.link(ctx, *t)

	case "link":
		if rest == "" {
			return false, false, domainerrors.Validation("usage: link <external-id>")
		}
		t, err := rs.findTitle(ctx, rest)
		if err != nil {
			return false, false, err
		}
		return rs.link(ctx, *t)

	case "new":
		externalID, name, _ := strings.Cut(rest, " ")
		name = strings.TrimSpace(name)
		if externalID == "" || name == "" {
			return false, false, domainerrors.Validation("usage: new <external-id> <name>")
		}
		t := domain.Title{ExternalID: externalID, Name: name}
		if _, err := rs.titles.Save(ctx, t); err != nil {
			fmt.Fprintf(rs.out, "Warning: title not shared with the server: %v\n", err)
		}
		return rs.link(ctx, t)

	case "set":
		patch, err := parseSet(rest)
		if err != nil {
			return false, false, err
		}
		if _, err := rs.engine.UpdateForm(patch); err != nil {
			return false, false, err
		}
		rs.show()
		return false, false, nil

	default:
		return false, false, domainerrors.Validationf("unknown command %q, type help", verb)
	}
}

// findTitle prefers the server's record and falls back to a title already in the profile.
func (rs *resolveSession) findTitle(ctx context.Context, externalID string) (*domain.Title, error) {
	t, err := rs.titles.Get(ctx, externalID)
	if err == nil {
		return t, nil
	}
	if local, lerr := rs.catalog.FindTitle(externalID); lerr == nil {
		return local, nil
	}
	return nil, err
}

func (rs *resolveSession) link(ctx context.Context, t domain.Title) (bool, bool, error) {
	cp, err := rs.engine.Resolve(ctx, t)
	if err != nil {
		return false, false, err
	}
	fmt.Fprintf(rs.out, "Linked %q to %s\n", cp.Title, cp.TitleRef)
	return true, false, nil
}

func (rs *resolveSession) show() {
	form, ok := rs.engine.Form()
	if !ok {
		return
	}
	p := rs.engine.Progress()
	fmt.Fprintf(rs.out, "\n[%d/%d] %s\n", p.Position, p.Remaining, form.Title)
	fmt.Fprintf(rs.out, "  format=%s region=%s edition=%s discs=%d languages=%s\n",
		orDash(form.Format), orDash(form.Region), orDash(form.Edition), form.DiscCount, orDash(form.Languages))
}

// parseSet turns field=value into a patch.
func parseSet(arg string) (catalog.CopyPatch, error) {
	var patch catalog.CopyPatch

	field, value, ok := strings.Cut(arg, "=")
	if !ok {
		return patch, domainerrors.Validation("usage: set <field>=<value>")
	}
	value = strings.TrimSpace(value)

	switch strings.ToLower(strings.TrimSpace(field)) {
	case "title":
		patch.Title = &value
	case "format":
		patch.Format = &value
	case "region":
		patch.Region = &value
	case "edition":
		patch.Edition = &value
	case "languages":
		patch.Languages = &value
	case "notes":
		patch.Notes = &value
	case "upc":
		patch.UPC = &value
	case "discs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return patch, domainerrors.Validationf("discs must be a number, got %q", value)
		}
		patch.DiscCount = &n
	default:
		return patch, domainerrors.Validationf("unknown field %q", field)
	}
	return patch, nil
}
