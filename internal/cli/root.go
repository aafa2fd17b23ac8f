// Package cli holds the memorygame command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/memorygame/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	DBPath   string

	// Config is resolved from the environment in PersistentPreRunE, then
	// overridden by flags.
	Config config.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "memorygame",
		Short: "memorygame - repeat the sequence",
		Long: `A four-panel memory game. Watch the panels light up, then tap them back
in the same order. Play locally in the terminal or serve the game over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides DB_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	return cmd
}

// resolve loads config and applies global flag overrides.
func (o *RootOptions) resolve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		lvl, err := zerolog.ParseLevel(o.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", o.LogLevel, err)
		}
		cfg.LogLevel = lvl
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	o.Config = cfg
	return nil
}

// Execute runs the command tree, cancelling on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setupLogging points the global logger at w with the configured level.
// Development gets the human-readable console format.
func setupLogging(cfg config.Config, w io.Writer, console bool) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
