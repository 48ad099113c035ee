package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"listbind/internal/app"
)

func serveCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and WebSocket session streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(ctx context.Context, a *app.App) error {
				return a.ServeHTTP(ctx)
			})
		},
	}
}

func mcpCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(_ context.Context, a *app.App) error {
				return a.ServeMCP()
			})
		},
	}
}

func importCmd(open opener) *cobra.Command {
	var preview int
	cmd := &cobra.Command{
		Use:   "import [job]",
		Short: "Run an import job, or list the jobs when none is named",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tSOURCE\tTARGET\tTRIGGER")
					for _, j := range a.ImportJobs() {
						trigger := j.TriggerType
						if j.TriggerConfig != "" {
							trigger += " " + j.TriggerConfig
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Name, j.SourceType, j.Target, trigger)
					}
					return tw.Flush()
				}
				if preview > 0 {
					res, err := a.PreviewImport(ctx, args[0], preview)
					if err != nil {
						return err
					}
					return printJSON(out, res)
				}
				res, err := a.RunImport(ctx, args[0])
				if res != nil {
					if perr := printJSON(out, res); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&preview, "preview", 0, "Print up to N transformed records instead of writing")
	return cmd
}

func runsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [job]",
		Short: "Show recent import runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(ctx context.Context, a *app.App) error {
				var job string
				if len(args) == 1 {
					job = args[0]
				}
				runs, err := a.ImportRuns(ctx, job)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "JOB\tSTARTED\tSTATUS\tREAD\tWRITTEN\tERROR")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
						r.Job, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.RowsRead, r.RowsWritten, r.Error)
				}
				return tw.Flush()
			})
		},
	}
}

func listsCmd(open opener) *cobra.Command {
	var resolve string
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "List the local lists, or resolve a loose list name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if resolve != "" {
					l, items, err := a.ResolveList(ctx, resolve)
					if err != nil {
						return err
					}
					return printJSON(out, map[string]any{"list": l, "items": items})
				}
				lists, err := a.Lists(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TITLE\tFIELDS\tSOURCE\tUPDATED")
				for _, l := range lists {
					names := make([]string, len(l.Fields))
					for i, f := range l.Fields {
						names[i] = f.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						l.Title, strings.Join(names, ", "), l.Source, l.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&resolve, "resolve", "", "Resolve a loose list name, e.g. SubCode")
	return cmd
}

func formsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the loaded form definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(_ context.Context, a *app.App) error {
				for _, id := range a.Forms() {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func sourcesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured external sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(_ context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Sources())
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "test <name>",
			Short: "Ping a configured source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(open, func(ctx context.Context, a *app.App) error {
					if err := a.TestSource(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "introspect <name>",
			Short: "Show the tables (or collections) of a configured source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(open, func(ctx context.Context, a *app.App) error {
					schema, err := a.IntrospectSource(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), schema)
				})
			},
		},
	)
	return cmd
}

func secretCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage source passwords in the configured secret backend",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <key>",
			Short: "Store a password read from stdin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				value := strings.TrimRight(line, "\r\n")
				if value == "" {
					if err != nil {
						return fmt.Errorf("read secret: %w", err)
					}
					return errors.New("empty secret")
				}
				return withApp(open, func(_ context.Context, a *app.App) error {
					return a.SetSecret(args[0], []byte(value))
				})
			},
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Remove a stored password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(open, func(_ context.Context, a *app.App) error {
					return a.DeleteSecret(args[0])
				})
			},
		},
	)
	return cmd
}

func approvalsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List agent actions waiting for approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(open, func(ctx context.Context, a *app.App) error {
				pending, err := a.PendingApprovals(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTOOL\tREQUESTED\tDESCRIPTION")
				for _, p := range pending {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Tool, p.CreatedAt.Format("15:04:05"), p.Description)
				}
				return tw.Flush()
			})
		},
	}
	decide := func(use, short string, fn func(*app.App, context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(open, func(ctx context.Context, a *app.App) error {
					if err := fn(a, ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %sd\n", args[0], use)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(
		decide("approve", "Let a waiting agent action proceed", (*app.App).Approve),
		decide("reject", "Refuse a waiting agent action", (*app.App).Reject),
	)
	return cmd
}
