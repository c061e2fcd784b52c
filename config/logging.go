package config

import (
	"fmt"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch/logging"
)

// LoggingConfig defines settings for dispatch decision log storage and
// rotation.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl" or "rotating".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "dispatch.log"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "rotating" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// BuildStore opens the configured dispatch log store.
func (c LoggingConfig) BuildStore() (logging.LogStore, error) {
	switch c.Backend {
	case "rotating":
		return logging.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	default:
		return logging.NewJSONLStore(c.Path)
	}
}
