// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the settings shared by the autoscale command and its subcommands.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/hweyandtnasa/autoscaling/numdiff"
	"github.com/hweyandtnasa/autoscaling/scaling"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. AUTOSCALE_POLICY.
const EnvPrefix = "AUTOSCALE"

// Config selects the scaling policy, its tolerances and the sensitivity method.
type Config struct {
	Policy       string  `mapstructure:"policy" yaml:"policy"`
	Epsilon      float64 `mapstructure:"epsilon" yaml:"epsilon"`
	RelThreshold float64 `mapstructure:"rel_threshold" yaml:"rel_threshold"`
	BoundInf     float64 `mapstructure:"bound_inf" yaml:"bound_inf"`
	Method       string  `mapstructure:"method" yaml:"method"`
	LogLevel     string  `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Policy:       scaling.PJRN.String(),
		Epsilon:      scaling.DefaultEpsilon,
		RelThreshold: scaling.DefaultRelThreshold,
		BoundInf:     scaling.DefaultBoundInf,
		Method:       numdiff.Central.String(),
		LogLevel:     logrus.InfoLevel.String(),
	}
}

// SetDefaults registers the defaults on v and binds the AUTOSCALE_ environment overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("policy", d.Policy)
	v.SetDefault("epsilon", d.Epsilon)
	v.SetDefault("rel_threshold", d.RelThreshold)
	v.SetDefault("bound_inf", d.BoundInf)
	v.SetDefault("method", d.Method)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v into a Config struct and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// ValidationError represents a single invalid setting.
type ValidationError struct {
	Field   string // The config key, e.g. "rel_threshold"
	Value   any    // The invalid value
	Message string // Human-readable error description
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks every setting and returns all failures found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	fail := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if _, err := scaling.ParseStrategy(c.Policy); err != nil {
		fail("policy", c.Policy, "must be iso or pjrn")
	}
	if !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0) {
		fail("epsilon", c.Epsilon, "must be a positive finite number")
	}
	// zero would select the policy default
	if !(c.RelThreshold > 0 && c.RelThreshold < 1) {
		fail("rel_threshold", c.RelThreshold, "must be in (0, 1)")
	}
	if !(c.BoundInf > 0) {
		fail("bound_inf", c.BoundInf, "must be positive")
	}
	if _, err := numdiff.ParseMethod(c.Method); err != nil {
		fail("method", c.Method, "must be forward or central")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		fail("log_level", c.LogLevel, "must be a logrus level")
	}
	return errs
}

// Strategy returns the configured scaling policy.
func (c *Config) Strategy() (scaling.Strategy, error) {
	return scaling.ParseStrategy(c.Policy)
}

// Options returns the policy tolerances.
func (c *Config) Options() scaling.Options {
	return scaling.Options{Epsilon: c.Epsilon, RelThreshold: c.RelThreshold, BoundInf: c.BoundInf}
}

// Sensitivity returns the finite-difference options.
func (c *Config) Sensitivity() (numdiff.Options, error) {
	m, err := numdiff.ParseMethod(c.Method)
	if err != nil {
		return numdiff.Options{}, err
	}
	return numdiff.Options{Settings: numdiff.Settings{Method: m}, BoundInf: c.BoundInf}, nil
}
