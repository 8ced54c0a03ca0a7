package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Session   SessionConfig   `toml:"session"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Data      DataConfig      `toml:"data"`
	Gameplay  GameplayConfig  `toml:"gameplay"`
}

type SessionConfig struct {
	Name      string `toml:"name"`
	Nickname  string `toml:"nickname"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress       string        `toml:"bind_address"` // host listens here
	HostAddress       string        `toml:"host_address"` // joining peers dial this
	TickRate          time.Duration `toml:"tick_rate"`
	InQueueSize       int           `toml:"in_queue_size"`
	OutQueueSize      int           `toml:"out_queue_size"`
	MaxPacketsPerTick int           `toml:"max_packets_per_tick"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	DialTimeout       time.Duration `toml:"dial_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"` // forwarded pool requests per peer
	Burst             int     `toml:"burst"`
	PacketsPerSecond  int     `toml:"packets_per_second"` // raw frames per connection
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

type DataConfig struct {
	PoolList       string `toml:"pool_list"`
	CrateSpawnList string `toml:"crate_spawn_list"`
	ScriptsDir     string `toml:"scripts_dir"`
}

type GameplayConfig struct {
	MaxEntities       int           `toml:"max_entities"` // 0 = unlimited
	BulletDamage      int           `toml:"bullet_damage"`
	RocketDamage      int           `toml:"rocket_damage"`
	DamageBoostTime   time.Duration `toml:"damage_boost_time"`
	DamageMultiplier  float64       `toml:"damage_multiplier"`
	CrateHealth       int           `toml:"crate_health"`
	CrateDisableDelay time.Duration `toml:"crate_disable_delay"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Session.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Session.StartTime = time.Now().Unix()
	return cfg
}

func defaults() *Config {
	return &Config{
		Session: SessionConfig{
			Name:     "arena",
			Nickname: "player",
		},
		Network: NetworkConfig{
			BindAddress:       "0.0.0.0:7777",
			HostAddress:       "127.0.0.1:7777",
			TickRate:          50 * time.Millisecond,
			InQueueSize:       128,
			OutQueueSize:      512,
			MaxPacketsPerTick: 32,
			WriteTimeout:      10 * time.Second,
			DialTimeout:       5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             10,
			PacketsPerSecond:  120,
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:9477",
		},
		Data: DataConfig{
			PoolList:       "data/yaml/pool_list.yaml",
			CrateSpawnList: "data/yaml/crate_spawn_list.yaml",
			ScriptsDir:     "scripts",
		},
		Gameplay: GameplayConfig{
			BulletDamage:      10,
			RocketDamage:      100,
			DamageBoostTime:   5 * time.Second,
			DamageMultiplier:  2,
			CrateHealth:       100,
			CrateDisableDelay: time.Second,
		},
	}
}
