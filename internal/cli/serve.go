package cli

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/memorygame/internal/config"
	"github.com/robalobadob/memorygame/internal/httpserver"
	"github.com/robalobadob/memorygame/internal/session"
	"github.com/robalobadob/memorygame/internal/store"
)

// reapEvery is how often idle sessions are swept.
const reapEvery = time.Minute

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the game over HTTP",
		Long: `Serve the game over HTTP. Each player (account or anonymous cookie) gets
one live session; clients poll /game/state and post taps to /game/tap.

Example:
  memorygame serve --port 8080 --db ./data/memorygame.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if opts.Port != "" {
				cfg.Port = opts.Port
			}
			setupLogging(cfg, os.Stderr, !cfg.Production())
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	if cfg.Production() && cfg.JWTSecret == "dev_secret_change_me" {
		log.Warn().Msg("JWT_SECRET is the development default")
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := session.NewManager(session.Options{
		Store:    db,
		Timing:   &cfg.Timing,
		RoundMin: cfg.RoundMin,
		RoundMax: cfg.RoundMax,
	})
	if err != nil {
		return err
	}
	defer m.Close()
	go m.RunReaper(ctx, reapEvery, cfg.SessionIdle)

	srv := httpserver.New(cfg, m, db, db)
	log.Info().Str("port", cfg.Port).Str("db", cfg.DBPath).Msg("starting memorygame server")
	if err := srv.ListenAndServe(ctx, ":"+cfg.Port); err != nil {
		log.Error().Err(err).Msg("server exited")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
