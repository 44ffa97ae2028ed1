package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"qualitrack/config"
	"qualitrack/core/appbootstrap"
	"qualitrack/core/utils"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "qualitrack",
		Short:         "Non-conformity lifecycle manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath), migrateCmd(&configPath), exportCmd(&configPath), envCmd())
	return cmd
}

func load(path string) (*config.AppConfig, *utils.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, utils.NewLoggerWithLevel(os.Stderr, cfg.LogLevel), nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return appbootstrap.Serve(ctx, cfg, logger)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(*configPath)
			if err != nil {
				return err
			}
			return appbootstrap.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every NC with its analysis, actions and verification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(*configPath)
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Exports.Format
			}
			var w io.Writer
			switch out {
			case "":
			case "-":
				w = cmd.OutOrStdout()
			default:
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return appbootstrap.Export(cmd.Context(), cfg, format, w, logger)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Export format (csv, json, yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to a file or - for stdout instead of the configured sink")
	return cmd
}

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the supported environment variables",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
		},
	}
}
