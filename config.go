package fileactivity

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a manager's tunables, loaded from YAML.
// Field names mirror spec.md §6's configuration list.
type Config struct {
	IntervalMS          int64    `yaml:"interval_ms"`
	DelayProcessMS      int64    `yaml:"delay_process_ms"`
	StabilityWindowMS   int64    `yaml:"stability_window_ms"`
	QueueCapacity       uint32   `yaml:"queue_capacity"`
	ExcludePrefixes     []string `yaml:"exclude_prefixes"`
	ExcludeAppData      bool     `yaml:"exclude_app_data"`
	ExclusionPolicyFile string   `yaml:"exclusion_policy_file"`
	Recursive           bool     `yaml:"recursive"`
	SQLiteAuditPath     string   `yaml:"sqlite_audit_path"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("fileactivity: decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ManagerConfig builds the ManagerConfig this Config describes. Zero fields
// are copied as zero; NewManager and the engine fill in their defaults.
// ExclusionPolicyFile and SQLiteAuditPath are not carried over, since
// ManagerConfig has no fields for them.
func (c Config) ManagerConfig() ManagerConfig {
	mc := ManagerConfig{
		Interval:        time.Duration(c.IntervalMS) * time.Millisecond,
		DelayProcess:    time.Duration(c.DelayProcessMS) * time.Millisecond,
		StabilityWindow: time.Duration(c.StabilityWindowMS) * time.Millisecond,
		QueueCapacity:   c.QueueCapacity,
		ExcludePrefixes: c.ExcludePrefixes,
		ExcludeAppData:  c.ExcludeAppData,
		Recursive:       c.Recursive,
	}
	return mc
}
