// internal/config/config.go
//
// Runtime configuration.
// Values come from the environment; a .env file in the working directory is
// loaded first (development convenience, never required). Unset or unparsable
// values fall back to defaults.
//
// Environment variables:
//   PORT, LOG_LEVEL, LOG_FILE, DB_PATH, APP_ENV
//   JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME, CLIENT_ORIGIN
//   ROUND_MIN, ROUND_MAX, PREFLASH_MS, HIGHLIGHT_MS, LOSE_STEP_MS, COOLDOWN_MS
//   SESSION_IDLE_MINUTES, AUDIO_MUTED

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/robalobadob/memorygame/internal/game"
)

// Config is the resolved configuration for both `serve` and `play`.
type Config struct {
	Port     string
	LogLevel zerolog.Level
	LogFile  string
	DBPath   string
	Env      string

	JWTSecret      string
	JWTExpiry      time.Duration
	CookieName     string
	AnonCookieName string
	ClientOrigin   string

	RoundMin int
	RoundMax int
	Timing   game.Timing

	SessionIdle time.Duration
	AudioMuted  bool
}

// Production reports whether cookies should be Secure/SameSite=None.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	def := game.DefaultTiming()
	c := Config{
		Port:           getEnv("PORT", "5175"),
		LogLevel:       zerolog.InfoLevel,
		LogFile:        os.Getenv("LOG_FILE"),
		DBPath:         getEnv("DB_PATH", "./data/memorygame.db"),
		Env:            getEnv("APP_ENV", "development"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiry:      time.Duration(envInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:     getEnv("COOKIE_NAME", "memorygame_token"),
		AnonCookieName: getEnv("ANON_COOKIE_NAME", "memorygame_anon"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		RoundMin:       envInt("ROUND_MIN", game.DefaultMinLength),
		RoundMax:       envInt("ROUND_MAX", game.DefaultMaxLength),
		Timing: game.Timing{
			PreFlash:  envMillis("PREFLASH_MS", def.PreFlash),
			Highlight: envMillis("HIGHLIGHT_MS", def.Highlight),
			LoseStep:  envMillis("LOSE_STEP_MS", def.LoseStep),
			Cooldown:  envMillis("COOLDOWN_MS", def.Cooldown),
		},
		SessionIdle: time.Duration(envInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		AudioMuted:  envBool("AUDIO_MUTED", false),
	}
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		c.LogLevel = lvl
	}
	return c, c.Validate()
}

// Validate rejects combinations the engine cannot run with.
func (c Config) Validate() error {
	if c.RoundMin < 1 || c.RoundMax < c.RoundMin {
		return fmt.Errorf("config: round length range %d..%d is invalid", c.RoundMin, c.RoundMax)
	}
	if c.SessionIdle <= 0 {
		return fmt.Errorf("config: SESSION_IDLE_MINUTES must be positive")
	}
	return nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envMillis(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
