// Package main provides the listbind binary: an HTTP/WebSocket host and an
// MCP server for forms whose panels and drop-downs are driven by list fields.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"listbind/internal/app"
	"listbind/internal/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "listbind",
		Short:         "Drive form panels and drop-downs from list field names",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path (YAML, defaults to $"+config.EnvConfig+")")

	// open loads the config and builds the app for a subcommand.
	open := func() (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		app.Version = Version
		return app.New(cfg)
	}

	cmd.AddCommand(
		serveCmd(open),
		mcpCmd(open),
		importCmd(open),
		runsCmd(open),
		listsCmd(open),
		formsCmd(open),
		sourcesCmd(open),
		secretCmd(open),
		approvalsCmd(open),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "listbind version %s\n", Version)
			},
		},
	)
	return cmd
}

type opener func() (*app.App, error)

// withApp opens the app, runs fn with a context cancelled on SIGINT/SIGTERM
// and closes the app afterwards.
func withApp(open opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := open()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
