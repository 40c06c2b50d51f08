// Package config loads assistant configuration from built-in defaults, an
// optional YAML file and TEMPO_* environment variables, in that precedence
// order (later sources override earlier ones).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config is the full assistant configuration tree.
type Config struct {
	User         string             `koanf:"user"`
	Oracle       OracleConfig       `koanf:"oracle"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Storage      StorageConfig      `koanf:"storage"`
	Log          LogConfig          `koanf:"log"`
}

// OracleConfig selects and tunes the decision oracle.
type OracleConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `koanf:"provider"`
	// Model overrides the provider default model.
	Model string `koanf:"model"`
	// APIKey overrides the provider's environment credential.
	APIKey string `koanf:"api_key"`
}

// OrchestratorConfig tunes the orchestration loop bounds.
type OrchestratorConfig struct {
	MaxReflections  int           `koanf:"max_reflections"`
	MaxHistory      int           `koanf:"max_history"`
	MaxSteps        int           `koanf:"max_steps"`
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
	DecideTimeout   time.Duration `koanf:"decide_timeout"`
	// Triggers is the reflection vocabulary. Empty keeps the default set.
	Triggers []string `koanf:"triggers"`
}

// SchedulerConfig tunes the scheduling sub-agent.
type SchedulerConfig struct {
	MaxToolRounds    int `koanf:"max_tool_rounds"`
	WorkdayStartHour int `koanf:"workday_start_hour"`
	WorkdayEndHour   int `koanf:"workday_end_hour"`
	MinSlotMinutes   int `koanf:"min_slot_minutes"`
}

// StorageConfig points at the persistence locations. Empty paths select the
// in-memory implementations.
type StorageConfig struct {
	// EventsPath is the sqlite database file for events.
	EventsPath string `koanf:"events_path"`
	// PreferencesPath is the directory for the persisted preference index.
	PreferencesPath string `koanf:"preferences_path"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is "text" or "json".
	Format string `koanf:"format"`
}

const defaultsYAML = `
user: default
oracle:
  provider: openai
orchestrator:
  max_reflections: 3
  max_history: 64
  max_steps: 32
  dispatch_timeout: 60s
  decide_timeout: 60s
scheduler:
  max_tool_rounds: 8
  workday_start_hour: 9
  workday_end_hour: 18
  min_slot_minutes: 30
log:
  level: info
  format: text
`

// Load builds the configuration. path may be empty to skip the file layer;
// a named file that does not exist is an error, not a silent fallback.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// TEMPO_ORCHESTRATOR_MAX_REFLECTIONS=5 -> orchestrator.max_reflections.
	err := k.Load(env.Provider("TEMPO_", ".", func(s string) string {
		return strings.ToLower(strings.Replace(strings.TrimPrefix(s, "TEMPO_"), "_", ".", 1))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Oracle.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Orchestrator.MaxReflections < 0 {
		return fmt.Errorf("config: orchestrator.max_reflections must not be negative")
	}
	if c.Scheduler.WorkdayStartHour < 0 || c.Scheduler.WorkdayEndHour > 24 ||
		c.Scheduler.WorkdayStartHour >= c.Scheduler.WorkdayEndHour {
		return fmt.Errorf("config: scheduler workday hours %d..%d are invalid",
			c.Scheduler.WorkdayStartHour, c.Scheduler.WorkdayEndHour)
	}
	if c.Scheduler.MinSlotMinutes <= 0 {
		return fmt.Errorf("config: scheduler.min_slot_minutes must be positive")
	}
	return nil
}
