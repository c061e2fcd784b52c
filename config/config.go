package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/metrics"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/schedule"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/tracker"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config     `json:"mqtt"`
	Dispatch  dispatch.Config `json:"dispatch"`
	Scheduler schedule.Config `json:"scheduler"`
	Tracker   tracker.Config  `json:"tracker"`
	Routing   RoutingConfig   `json:"routing"`
	Metrics   metrics.Config  `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
	API       APIConfig       `json:"api"`
}

// RoutingConfig tunes the travel estimator and route optimizer.
type RoutingConfig struct {
	// SpeedKmh is the assumed average travel speed. Default 40.
	SpeedKmh float64 `json:"speed_kmh"`
	// MaxImprovePasses bounds the pairwise-swap improvement loop.
	MaxImprovePasses int `json:"max_improve_passes"`
}

// SetDefaults applies sane defaults.
func (c *RoutingConfig) SetDefaults() {
	if c.SpeedKmh <= 0 {
		c.SpeedKmh = 40
	}
}

// APIConfig configures the operational HTTP surface.
type APIConfig struct {
	// Addr is the listen address, e.g. ":8880".
	Addr string `json:"addr"`
	// AuthToken, when set, is required as a bearer token on log queries.
	AuthToken string `json:"auth_token"`
}

// Load reads the configuration file, applies FS_* environment overrides
// (double underscore separating nested keys) and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Tracker.SetDefaults()
	cfg.Routing.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
