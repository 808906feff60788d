package sweep

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines sweep, promotion and archival cadence.
type Config struct {
	ThresholdMinutes []int
	TickInterval     time.Duration
	WindowWidth      time.Duration
	PromoteInterval  time.Duration
	ArchiveAfter     time.Duration
	ArchiveInterval  time.Duration
	// Enabled designates this instance as the single sweeper. Replicas
	// serving reads only must run with it off.
	Enabled bool
}

type fileConfig struct {
	ThresholdMinutes []int  `yaml:"threshold_minutes"`
	TickInterval     string `yaml:"tick_interval"`
	WindowWidth      string `yaml:"window_width"`
	PromoteInterval  string `yaml:"promote_interval"`
	ArchiveAfter     string `yaml:"archive_after"`
	ArchiveInterval  string `yaml:"archive_interval"`
	Enabled          *bool  `yaml:"enabled"`
}

// LoadConfig loads sweep configuration from yaml (SWEEP_CONFIG) or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		ThresholdMinutes: []int{1, 5, 10, 15},
		TickInterval:     20 * time.Second,
		WindowWidth:      time.Minute,
		PromoteInterval:  15 * time.Second,
		ArchiveAfter:     7 * 24 * time.Hour,
		ArchiveInterval:  time.Hour,
		Enabled:          true,
	}

	if path := os.Getenv("SWEEP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		if err := applyFile(&cfg, file); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the window/tick coupling the detector's exactly-once
// guarantee depends on. Misconfiguration fails startup instead of silently
// missing crossings.
func (c Config) Validate() error {
	if len(c.ThresholdMinutes) == 0 {
		return errors.New("sweep: at least one threshold required")
	}
	for _, threshold := range c.ThresholdMinutes {
		if threshold <= 0 {
			return errors.New("sweep: thresholds must be positive minutes")
		}
	}
	if c.TickInterval <= 0 {
		return errors.New("sweep: tick interval must be positive")
	}
	if c.WindowWidth <= 0 {
		return errors.New("sweep: window width must be positive")
	}
	if c.TickInterval >= c.WindowWidth {
		return fmt.Errorf("sweep: tick interval %s must be strictly smaller than window width %s", c.TickInterval, c.WindowWidth)
	}
	if c.PromoteInterval <= 0 {
		return errors.New("sweep: promote interval must be positive")
	}
	if c.ArchiveAfter <= 0 || c.ArchiveInterval <= 0 {
		return errors.New("sweep: archive settings must be positive")
	}
	return nil
}

func applyFile(cfg *Config, file fileConfig) error {
	if len(file.ThresholdMinutes) > 0 {
		cfg.ThresholdMinutes = normalizeThresholds(file.ThresholdMinutes)
	}
	for _, field := range []struct {
		value  string
		target *time.Duration
	}{
		{file.TickInterval, &cfg.TickInterval},
		{file.WindowWidth, &cfg.WindowWidth},
		{file.PromoteInterval, &cfg.PromoteInterval},
		{file.ArchiveAfter, &cfg.ArchiveAfter},
		{file.ArchiveInterval, &cfg.ArchiveInterval},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return fmt.Errorf("sweep: bad duration %q: %w", field.value, err)
		}
		*field.target = parsed
	}
	if file.Enabled != nil {
		cfg.Enabled = *file.Enabled
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value := os.Getenv("SWEEP_THRESHOLD_MINUTES"); value != "" {
		thresholds, err := parseThresholdList(value)
		if err != nil {
			return err
		}
		cfg.ThresholdMinutes = thresholds
	}
	for _, field := range []struct {
		key    string
		target *time.Duration
	}{
		{"SWEEP_TICK_INTERVAL", &cfg.TickInterval},
		{"SWEEP_WINDOW_WIDTH", &cfg.WindowWidth},
		{"SWEEP_PROMOTE_INTERVAL", &cfg.PromoteInterval},
		{"SWEEP_ARCHIVE_AFTER", &cfg.ArchiveAfter},
		{"SWEEP_ARCHIVE_INTERVAL", &cfg.ArchiveInterval},
	} {
		value := os.Getenv(field.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("sweep: bad %s: %w", field.key, err)
		}
		*field.target = parsed
	}
	if value := os.Getenv("SWEEP_ENABLED"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("sweep: bad SWEEP_ENABLED: %w", err)
		}
		cfg.Enabled = enabled
	}
	return nil
}

func parseThresholdList(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	thresholds := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("sweep: bad threshold %q: %w", part, err)
		}
		thresholds = append(thresholds, parsed)
	}
	return normalizeThresholds(thresholds), nil
}

func normalizeThresholds(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	thresholds := make([]int, 0, len(values))
	for _, value := range values {
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		thresholds = append(thresholds, value)
	}
	sort.Ints(thresholds)
	return thresholds
}
