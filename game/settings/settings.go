// Package settings holds process-level settings for the Dice Merge server,
// read from DICEMERGE_* environment variables. Command-line flags in main
// override whatever is parsed here.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Score store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings configures the server process.
type Settings struct {
	Host        string `env:"DICEMERGE_HOST" envDefault:"localhost"`
	Port        int    `env:"DICEMERGE_PORT" envDefault:"8080"`
	ConfigDir   string `env:"DICEMERGE_CONFIG_DIR" envDefault:"configs"`
	// DefaultConfig names the config used when a session asks for none.
	// Empty keeps classic, or the first config found.
	DefaultConfig string `env:"DICEMERGE_DEFAULT_CONFIG"`
	SessionsDir string `env:"DICEMERGE_SESSIONS_DIR" envDefault:"sessions"`

	ScoreStore       string        `env:"DICEMERGE_SCORE_STORE" envDefault:"file"`
	ScoresFile       string        `env:"DICEMERGE_SCORES_FILE" envDefault:"scores.json"`
	ScoresDB         string        `env:"DICEMERGE_SCORES_DB" envDefault:"scores.db"`
	SnapshotInterval time.Duration `env:"DICEMERGE_SNAPSHOT_INTERVAL" envDefault:"5s"`

	SessionMaxAge   time.Duration `env:"DICEMERGE_SESSION_MAX_AGE" envDefault:"24h"`
	CleanupInterval time.Duration `env:"DICEMERGE_CLEANUP_INTERVAL" envDefault:"1h"`
	SyncInterval    time.Duration `env:"DICEMERGE_SYNC_INTERVAL" envDefault:"5s"`

	// Seed fixes the dice RNG for every session when non-zero.
	Seed int64 `env:"DICEMERGE_SEED" envDefault:"0"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED" envDefault:"false"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
	// NGROK_AUTH_TOKEN is accepted as an alias.
	NgrokAuthTokenAlt string `env:"NGROK_AUTH_TOKEN"`
}

// Load parses Settings from the environment and validates them.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if s.NgrokAuthToken == "" {
		s.NgrokAuthToken = s.NgrokAuthTokenAlt
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Default returns the settings used when the environment sets nothing.
func Default() Settings {
	var s Settings
	_ = env.ParseWithOptions(&s, env.Options{Environment: map[string]string{}})
	return s
}

// Addr is the host:port the HTTP server listens on.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks ranges and enum values.
func (s Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSettings, s.Port)
	}
	switch strings.ToLower(s.ScoreStore) {
	case StoreFile:
		if strings.TrimSpace(s.ScoresFile) == "" {
			return fmt.Errorf("%w: scores file is required for the file store", ErrInvalidSettings)
		}
	case StoreSQLite:
		if strings.TrimSpace(s.ScoresDB) == "" {
			return fmt.Errorf("%w: scores db is required for the sqlite store", ErrInvalidSettings)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown score store %q", ErrInvalidSettings, s.ScoreStore)
	}
	if s.SnapshotInterval < 0 {
		return fmt.Errorf("%w: snapshot interval must not be negative", ErrInvalidSettings)
	}
	if s.CleanupInterval <= 0 || s.SyncInterval <= 0 {
		return fmt.Errorf("%w: cleanup and sync intervals must be positive", ErrInvalidSettings)
	}
	if s.SessionMaxAge <= 0 {
		return fmt.Errorf("%w: session max age must be positive", ErrInvalidSettings)
	}
	return nil
}
