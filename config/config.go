// SPDX-License-Identifier: MIT

// Package config loads a participant's tunables through viper,
// mirroring the mapstructure-tagged overlay pattern used by the
// go-redis-work-queue config package this is grounded on.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Discovery holds SPDP/SEDP timing knobs.
type Discovery struct {
	DomainID          int           `mapstructure:"domain_id"`
	ParticipantID     int           `mapstructure:"participant_id"`
	SPDPPeriod        time.Duration `mapstructure:"spdp_period"`
	SPDPInitialBursts int           `mapstructure:"spdp_initial_bursts"`
	SPDPBurstInterval time.Duration `mapstructure:"spdp_burst_interval"`
	LeaseDuration     time.Duration `mapstructure:"lease_duration"`
	LeaseMultiplier   float64       `mapstructure:"lease_multiplier"`
	LeaseTickPeriod   time.Duration `mapstructure:"lease_tick_period"`
	StaticPeers       []string      `mapstructure:"static_peers"`
}

// Reliability holds heartbeat/NACK timing knobs.
type Reliability struct {
	HeartbeatPeriod   time.Duration `mapstructure:"heartbeat_period"`
	NackResponseDelay time.Duration `mapstructure:"nack_response_delay"`
	FragmentTimeout   time.Duration `mapstructure:"fragment_timeout"`
	MaxPendingGroups  int           `mapstructure:"max_pending_groups"`
}

// ResourceLimits bounds memory the core is allowed to hold per writer.
type ResourceLimits struct {
	MaxSamplesPerWriter int `mapstructure:"max_samples_per_writer"`
	MaxBytesPerWriter   int `mapstructure:"max_bytes_per_writer"`
}

// Config is the full set of tunables a Participant is built from.
type Config struct {
	Discovery       Discovery       `mapstructure:"discovery"`
	Reliability     Reliability     `mapstructure:"reliability"`
	ResourceLimits  ResourceLimits  `mapstructure:"resource_limits"`
	FragmentSize    int             `mapstructure:"fragment_size"`
	MaxBlockingTime time.Duration   `mapstructure:"max_blocking_time"`
}

// Defaults returns the configuration a Participant uses when no file
// or environment overlay is present.
func Defaults() *Config {
	return &Config{
		Discovery: Discovery{
			DomainID:          0,
			ParticipantID:     0,
			SPDPPeriod:        3 * time.Second,
			SPDPInitialBursts: 3,
			SPDPBurstInterval: 500 * time.Millisecond,
			LeaseDuration:     10 * time.Second,
			LeaseMultiplier:   1.5,
			LeaseTickPeriod:   time.Second,
		},
		Reliability: Reliability{
			HeartbeatPeriod:   100 * time.Millisecond,
			NackResponseDelay: 10 * time.Millisecond,
			FragmentTimeout:   5 * time.Second,
			MaxPendingGroups:  64,
		},
		ResourceLimits: ResourceLimits{
			MaxSamplesPerWriter: 1024,
			MaxBytesPerWriter:   8 << 20,
		},
		FragmentSize:    1300,
		MaxBlockingTime: 0,
	}
}

// Load reads path (YAML, TOML, or JSON — viper detects by extension)
// and overlays it onto Defaults(). A missing file is not an error:
// construction falls back to defaults, since a participant holds no
// persisted state to recover.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HDDS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
