package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/profile"
)

// profileView is a profile as printed by the profile commands.
type profileView struct {
	domain.Profile `yaml:",inline"`
	Active         bool `json:"active" yaml:"active"`
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
		Long: `Every profile has its own copies, titles, custom editions and backups.
The default profile always exists.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List profiles",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				active := m.Active().Profile.Name

				views := make([]profileView, 0)
				for _, p := range m.List() {
					views = append(views, profileView{Profile: p, Active: p.Name == active})
				}
				return a.render(cmd.OutOrStdout(), views, func(w io.Writer) error {
					for _, v := range views {
						marker := " "
						if v.Active {
							marker = "*"
						}
						if _, err := fmt.Fprintf(w, "%s %s\n", marker, v.Name); err != nil {
							return err
						}
					}
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a profile",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				p, err := m.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), p, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Created profile %q\n", p.Name)
					return err
				})
			}),
		},
		&cobra.Command{
			Use:   "switch <name>",
			Short: "Make a profile the active one",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				s, err := m.Switch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), s.Profile, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Switched to profile %q\n", s.Profile.Name)
					return err
				})
			}),
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a profile and all of its data",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				if err := m.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				active := m.Active().Profile.Name
				return a.render(cmd.OutOrStdout(), map[string]string{"deleted": args[0], "active": active}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted profile %q, active profile is %q\n", args[0], active)
					return err
				})
			}),
		},
	)

	return cmd
}

// editionView is an edition as printed by editions list.
type editionView struct {
	Name   string `json:"name" yaml:"name"`
	Custom bool   `json:"custom" yaml:"custom"`
}

func newEditionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editions",
		Short: "Manage the edition names offered for copies",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List built-in and custom editions",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				var views []editionView
				err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
					custom := s.Catalog.CustomEditions()
					for _, e := range s.Catalog.Editions() {
						views = append(views, editionView{Name: e, Custom: slices.Contains(custom, e)})
					}
					return nil
				})
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), views, func(w io.Writer) error {
					for _, v := range views {
						suffix := ""
						if v.Custom {
							suffix = " (custom)"
						}
						if _, err := fmt.Fprintf(w, "%s%s\n", v.Name, suffix); err != nil {
							return err
						}
					}
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a custom edition",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				var added string
				err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
					var err error
					added, err = s.Catalog.AddCustomEdition(ctx, args[0])
					return err
				})
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), editionView{Name: added, Custom: true}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added edition %q\n", added)
					return err
				})
			}),
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Remove a custom edition",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				err := a.session(cmd.Context(), func(ctx context.Context, s *profile.Session) error {
					return s.Catalog.RemoveCustomEdition(ctx, args[0])
				})
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), map[string]string{"removed": args[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Removed edition %q\n", args[0])
					return err
				})
			}),
		},
	)

	return cmd
}
