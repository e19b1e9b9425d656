package pool

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config for file-based loading. Every field is a
// pointer so LoadConfig can tell "absent, keep the default" apart from "set
// to the zero value", and durations are decoded as Go duration strings
// ("30m", "-1s") rather than raw nanosecond integers.
type yamlConfig struct {
	MaxTotal                 *int                 `yaml:"maxTotal"`
	MaxIdle                  *int                 `yaml:"maxIdle"`
	MinIdle                  *int                 `yaml:"minIdle"`
	BlockWhenExhausted       *bool                `yaml:"blockWhenExhausted"`
	MaxWait                  *string              `yaml:"maxWait"`
	LIFO                     *bool                `yaml:"lifo"`
	TestOnCreate             *bool                `yaml:"testOnCreate"`
	TestOnBorrow             *bool                `yaml:"testOnBorrow"`
	TestOnReturn             *bool                `yaml:"testOnReturn"`
	TestWhileIdle            *bool                `yaml:"testWhileIdle"`
	TimeBetweenEvictionRuns  *string              `yaml:"timeBetweenEvictionRuns"`
	NumTestsPerEvictionRun   *int                 `yaml:"numTestsPerEvictionRun"`
	MinEvictableIdleTime     *string              `yaml:"minEvictableIdleTime"`
	SoftMinEvictableIdleTime *string              `yaml:"softMinEvictableIdleTime"`
	Abandoned                *yamlAbandonedConfig `yaml:"abandoned"`
}

type yamlAbandonedConfig struct {
	RemoveAbandonedOnBorrow      bool   `yaml:"removeAbandonedOnBorrow"`
	RemoveAbandonedOnMaintenance bool   `yaml:"removeAbandonedOnMaintenance"`
	RemoveAbandonedTimeout       string `yaml:"removeAbandonedTimeout"`
}

// LoadConfig reads a YAML document from r and applies every field it sets
// on top of the package defaults (NewConfig()'s values stand in for any
// field the document omits).
func LoadConfig(r io.Reader) (*Config, error) {
	var y yamlConfig
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&y); err != nil && err != io.EOF {
		return nil, fmt.Errorf("pool: decode config: %w", err)
	}

	cfg := defaultConfig()

	if y.MaxTotal != nil {
		cfg.MaxTotal = *y.MaxTotal
	}
	if y.MaxIdle != nil {
		cfg.MaxIdle = *y.MaxIdle
	}
	if y.MinIdle != nil {
		cfg.MinIdle = *y.MinIdle
	}
	if y.BlockWhenExhausted != nil {
		cfg.BlockWhenExhausted = *y.BlockWhenExhausted
	}
	if y.LIFO != nil {
		cfg.LIFO = *y.LIFO
	}
	if y.TestOnCreate != nil {
		cfg.TestOnCreate = *y.TestOnCreate
	}
	if y.TestOnBorrow != nil {
		cfg.TestOnBorrow = *y.TestOnBorrow
	}
	if y.TestOnReturn != nil {
		cfg.TestOnReturn = *y.TestOnReturn
	}
	if y.TestWhileIdle != nil {
		cfg.TestWhileIdle = *y.TestWhileIdle
	}
	if y.NumTestsPerEvictionRun != nil {
		cfg.NumTestsPerEvictionRun = *y.NumTestsPerEvictionRun
	}

	if err := applyDuration(y.MaxWait, &cfg.MaxWait); err != nil {
		return nil, fmt.Errorf("pool: maxWait: %w", err)
	}
	if err := applyDuration(y.TimeBetweenEvictionRuns, &cfg.TimeBetweenEvictionRuns); err != nil {
		return nil, fmt.Errorf("pool: timeBetweenEvictionRuns: %w", err)
	}
	if err := applyDuration(y.MinEvictableIdleTime, &cfg.MinEvictableIdleTime); err != nil {
		return nil, fmt.Errorf("pool: minEvictableIdleTime: %w", err)
	}
	if err := applyDuration(y.SoftMinEvictableIdleTime, &cfg.SoftMinEvictableIdleTime); err != nil {
		return nil, fmt.Errorf("pool: softMinEvictableIdleTime: %w", err)
	}

	if y.Abandoned != nil {
		timeout, err := time.ParseDuration(orDefault(y.Abandoned.RemoveAbandonedTimeout, "0s"))
		if err != nil {
			return nil, fmt.Errorf("pool: abandoned.removeAbandonedTimeout: %w", err)
		}
		cfg.Abandoned = &AbandonedConfig{
			RemoveAbandonedOnBorrow:      y.Abandoned.RemoveAbandonedOnBorrow,
			RemoveAbandonedOnMaintenance: y.Abandoned.RemoveAbandonedOnMaintenance,
			RemoveAbandonedTimeout:       timeout,
		}
	}

	return cfg, nil
}

func applyDuration(s *string, dst *time.Duration) error {
	if s == nil {
		return nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
