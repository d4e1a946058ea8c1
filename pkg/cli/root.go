// Package cli implements the catcherr command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"catcherr/internal/app"
	"catcherr/internal/config"
	"catcherr/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if kind := errorKind(err); kind != "" {
				errObj["kind"] = kind
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorKind names the domain error class of err, if any.
func errorKind(err error) string {
	var (
		nf *domain.NotFoundError
		ad *domain.AccessDeniedError
		ve *domain.ValidationError
		ce *domain.ConflictError
	)
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ad):
		return "access_denied"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ce):
		return "conflict"
	}
	return ""
}

// rootState carries resolved settings from the root command to subcommands.
type rootState struct {
	output   string
	logLevel string
	envFile  string

	cfg    *config.Config
	logger *slog.Logger
}

// openApp wires the application for a subcommand.
func (s *rootState) openApp() (*app.App, error) {
	return app.New(app.Deps{Cfg: s.cfg, Logger: s.logger})
}

func newRootCmd() *cobra.Command {
	st := &rootState{}

	rootCmd := &cobra.Command{
		Use:   "catcherr",
		Short: "Reconcile submission metadata against a data dictionary",
		Long: "catcherr fixes the most common metadata errors of a submission before validation: " +
			"controlled-vocabulary terms, non-portable characters, the ACL value, file urls and file guids.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(st.output); err != nil {
				return err
			}
			if err := config.LoadDotEnv(st.envFile); err != nil {
				return fmt.Errorf("load %s: %w", st.envFile, err)
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// flag > env > default
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = st.logLevel
			}
			st.cfg = cfg
			st.logger = newLogger(cmd.ErrOrStderr(), cfg)
			for _, w := range cfg.Warnings {
				st.logger.Warn("config", "warning", w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&st.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&st.envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(newRunCmd(st))
	rootCmd.AddCommand(newHistoryCmd(st))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
