// Package config loads server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Data     DataConfig     `mapstructure:"data"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Auth     AuthConfig     `mapstructure:"auth"`
	// Tournament configures the bracket manager.
	Tournament TournamentConfig `mapstructure:"tournament"`
}

type ServerConfig struct {
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	// MaxBattles caps the number of battles held in memory at once.
	MaxBattles int `mapstructure:"max_battles" env:"EP3_MAX_BATTLES"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address" env:"EP3_GRPC_ADDRESS"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

type WebSocketConfig struct {
	Address         string        `mapstructure:"address" env:"EP3_WS_ADDRESS"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"EP3_LOG_LEVEL"`
	Format string `mapstructure:"format" env:"EP3_LOG_FORMAT"`
}

// DatabaseConfig selects where finished battle records are stored. Driver
// is "sqlite", "postgres" or "none".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" env:"EP3_DB_DRIVER"`
	DSN      string `mapstructure:"dsn" env:"EP3_DB_DSN"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type DataConfig struct {
	CardsPath  string `mapstructure:"cards_path" env:"EP3_CARDS_PATH"`
	MapsDir    string `mapstructure:"maps_dir" env:"EP3_MAPS_DIR"`
	RecordsDir string `mapstructure:"records_dir" env:"EP3_RECORDS_DIR"`
}

// BattleConfig holds the server-wide battle behavior switches.
type BattleConfig struct {
	DisableInterference     bool `mapstructure:"disable_interference"`
	AllowNonCPUInterference bool `mapstructure:"allow_non_cpu_interference"`
	SkipDeckVerify          bool `mapstructure:"skip_deck_verify" env:"EP3_SKIP_DECK_VERIFY"`
	SkipD1D2Replace         bool `mapstructure:"skip_d1_d2_replace"`
	DisableTimeLimits       bool `mapstructure:"disable_time_limits" env:"EP3_DISABLE_TIME_LIMITS"`
	Tournament              bool `mapstructure:"tournament"`
	// TrapCardIDs overrides the trap card pool per trap color, in the order
	// red, blue, purple, green, yellow.
	TrapCardIDs [][]uint16 `mapstructure:"trap_card_ids"`
}

// AuthConfig guards the administrative commands. The hash is a bcrypt hash
// of the admin password; empty disables them.
type AuthConfig struct {
	AdminPasswordHash string `mapstructure:"admin_password_hash" env:"EP3_ADMIN_PASSWORD_HASH"`
}

// TournamentConfig names the state file brackets are saved to and the COM
// decks used to fill empty seats.
type TournamentConfig struct {
	StateFile string   `mapstructure:"state_file" env:"EP3_TOURNAMENT_STATE"`
	COMDecks  []string `mapstructure:"com_decks"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", "127.0.0.1:9400")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.address", "127.0.0.1:9401")
	v.SetDefault("server.websocket.path", "/battle")
	v.SetDefault("server.websocket.read_buffer_size", 4096)
	v.SetDefault("server.websocket.write_buffer_size", 4096)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.max_battles", 64)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "ep3.db")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("data.cards_path", "data/cards.yaml")
	v.SetDefault("data.maps_dir", "data/maps")
	v.SetDefault("tournament.state_file", "tournaments.yaml")
	v.SetDefault("tournament.com_decks", []string{"COM:Hunters", "COM:Arkz"})
}

// Load reads the configuration at path. A missing file is not an error: the
// defaults and environment still apply. Environment variables win over the
// file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required for driver %q", c.Database.Driver)
		}
	case "none", "":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	if len(c.Battle.TrapCardIDs) > 5 {
		return fmt.Errorf("config: battle.trap_card_ids has %d entries, at most 5 allowed", len(c.Battle.TrapCardIDs))
	}
	if c.Server.MaxBattles <= 0 {
		return fmt.Errorf("config: server.max_battles must be positive")
	}
	return nil
}
