// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsPopulatesSpecDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8443, cfg.Listen.Port)
	assert.Equal(t, 100, cfg.RateLimit.MessagesPerMinute)
	assert.Equal(t, 20, cfg.DHT.K)
}

func TestLoadWithMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Listen.Host)
}

func TestLoadParsesYAMLAndSubstitutesEnvVars(t *testing.T) {
	t.Setenv("AICP_TEST_SECRET_VALUE", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "entity_id: agent-1\n" +
		"jwt:\n" +
		"  secret: \"${AICP_TEST_SECRET_VALUE}\"\n" +
		"listen:\n" +
		"  port: 9001\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", cfg.EntityID)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9001, cfg.Listen.Port)
}

func TestSubstituteEnvVarsFallsBackToDefault(t *testing.T) {
	os.Unsetenv("AICP_UNSET_VAR")
	got := substituteEnvVars("level: ${AICP_UNSET_VAR:info}")
	assert.Equal(t, "level: info", got)
}

func TestApplyEnvOverridesTakesPriorityOverFile(t *testing.T) {
	t.Setenv("AICP_LISTEN_PORT", "7000")
	t.Setenv("AICP_ENTITY_ID", "override-entity")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entity_id: file-entity\nlisten:\n  port: 1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-entity", cfg.EntityID)
	assert.Equal(t, 7000, cfg.Listen.Port)
}
