// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hweyandtnasa/autoscaling/numdiff"
	"github.com/hweyandtnasa/autoscaling/scaling"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())

	s, err := cfg.Strategy()
	require.NoError(t, err)
	assert.Equal(t, scaling.PJRN, s)

	opt, err := cfg.Sensitivity()
	require.NoError(t, err)
	assert.Equal(t, numdiff.Central, opt.Method)
	assert.Equal(t, scaling.DefaultBoundInf, opt.BoundInf)

	_, err = scaling.New(s, cfg.Options())
	assert.NoError(t, err)
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoscale.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: iso\nrel_threshold: 1e-3\nmethod: forward\n"), 0o644))
	t.Setenv("AUTOSCALE_EPSILON", "1e-9")

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "iso", cfg.Policy)
	assert.Equal(t, 1e-3, cfg.RelThreshold)
	assert.Equal(t, "forward", cfg.Method)
	assert.Equal(t, 1e-9, cfg.Epsilon)
	assert.Equal(t, scaling.DefaultBoundInf, cfg.BoundInf)
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := &Config{
		Policy:       "newton",
		Epsilon:      0,
		RelThreshold: 1,
		BoundInf:     -1,
		Method:       "complex",
		LogLevel:     "loud",
	}
	errs := cfg.Validate()
	require.Len(t, errs, 6)

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"policy", "epsilon", "rel_threshold", "bound_inf", "method", "log_level"}, fields)
	assert.Contains(t, errs.Error(), "6 validation errors")

	v := viper.New()
	SetDefaults(v)
	v.Set("policy", "newton")
	_, err := Load(v)
	var ve ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve, 1)
	assert.Equal(t, "policy: must be iso or pjrn (got: newton)", ve.Error())
}

func TestValidateRejectsZeroThreshold(t *testing.T) {
	cfg := Default()
	cfg.RelThreshold = 0
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "rel_threshold", errs[0].Field)
	assert.Equal(t, "rel_threshold: must be in (0, 1) (got: 0)", errs[0].Error())

	cfg.RelThreshold = 1e-3
	assert.Empty(t, cfg.Validate())
}
