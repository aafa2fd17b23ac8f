package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/memorygame/internal/audio"
	"github.com/robalobadob/memorygame/internal/config"
	"github.com/robalobadob/memorygame/internal/session"
	"github.com/robalobadob/memorygame/internal/store"
	"github.com/robalobadob/memorygame/internal/terminal"
)

// LocalOwner keys the terminal player's best score and history.
const LocalOwner = "local"

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Mute    bool
	NoMusic bool
	Owner   string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Long: `Play in the terminal. Keys 1-4 (or mouse clicks) tap the panels,
m toggles sound, q or Esc quits. The best score is kept in the database.

Logs go to LOG_FILE when set, otherwise they are discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if opts.Mute {
				cfg.AudioMuted = true
			}
			logs, err := openLogFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logs.Close()
			setupLogging(cfg, logs, false)
			return runPlay(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Mute, "mute", false, "start muted (overrides AUDIO_MUTED)")
	cmd.Flags().BoolVar(&opts.NoMusic, "no-music", false, "disable the background drone")
	cmd.Flags().StringVar(&opts.Owner, "owner", LocalOwner, "profile the best score is stored under")
	return cmd
}

func runPlay(ctx context.Context, cfg config.Config, opts *PlayOptions) error {
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	player := audio.New(audio.Options{Muted: cfg.AudioMuted, Music: !opts.NoMusic})
	defer player.Close()

	m, err := session.NewManager(session.Options{
		Store:     db,
		Timing:    &cfg.Timing,
		RoundMin:  cfg.RoundMin,
		RoundMax:  cfg.RoundMax,
		ExtraSink: player,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	s, err := m.Start(opts.Owner)
	if err != nil {
		return err
	}
	log.Info().Str("owner", opts.Owner).Str("db", cfg.DBPath).Msg("local game started")
	return terminal.New(screen, s.Board, s.Engine, player, nil).Run(ctx)
}

// openLogFile opens path for appending, or discards logs when path is empty.
func openLogFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
