package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CLIPortWins(t *testing.T) {
	t.Setenv("PORT", "9999")

	var stderr bytes.Buffer
	cfg, err := Load([]string{"3000"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Empty(t, stderr.String())
}

func TestLoad_EnvPortFallback(t *testing.T) {
	t.Setenv("PORT", "9000")

	var stderr bytes.Buffer
	cfg, err := Load(nil, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
}

func TestLoad_DefaultPort(t *testing.T) {
	t.Setenv("PORT", "")

	var stderr bytes.Buffer
	cfg, err := Load(nil, &stderr)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoad_InvalidCLIPortIsFatal(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Load([]string{"not-a-port"}, &stderr)
	assert.Error(t, err)

	_, err = Load([]string{"70000"}, &stderr)
	assert.Error(t, err)

	_, err = Load([]string{"0"}, &stderr)
	assert.Error(t, err)
}

func TestLoad_InvalidEnvPortWarnsAndDefaults(t *testing.T) {
	t.Setenv("PORT", "banana")

	var stderr bytes.Buffer
	cfg, err := Load(nil, &stderr)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Contains(t, stderr.String(), "Invalid PORT env")
}

func TestLoad_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Load([]string{"--help"}, &stderr)
	assert.ErrorIs(t, err, ErrHelp)

	_, err = Load([]string{"-h"}, &stderr)
	assert.ErrorIs(t, err, ErrHelp)
}

func TestLoad_Origins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	var stderr bytes.Buffer
	cfg, err := Load(nil, &stderr)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_OriginsDefault(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")

	var stderr bytes.Buffer
	cfg, err := Load(nil, &stderr)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestUsage(t *testing.T) {
	usage := Usage("server")
	assert.Contains(t, usage, "Usage: server [port]")
	assert.Contains(t, usage, DefaultPort)
}
