package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/argus/internal/config"
	"github.com/banshee-data/argus/internal/tracking"
)

func setFlag(t *testing.T, p *string, v string) {
	t.Helper()
	prev := *p
	*p = v
	t.Cleanup(func() { *p = prev })
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":4210", cfg.GetListen())
	assert.Equal(t, ":8081", cfg.GetHTTPListen())
}

func TestLoadConfig_FileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": ":5000", "device_key_mode": "constant", "constant_device_key": 12}`), 0o644))

	setFlag(t, configPath, path)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.GetListen())
	assert.Equal(t, tracking.ConstantKey(12), newResolver(cfg))

	setFlag(t, listen, "127.0.0.1:6000")
	setFlag(t, httpListen, "off")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6000", cfg.GetListen())
	assert.Empty(t, cfg.GetHTTPListen())
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	setFlag(t, listen, "no-port")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "invalid listen address")
}

func TestNewResolver_DefaultsToAddress(t *testing.T) {
	assert.Equal(t, tracking.AddressKey{}, newResolver(config.DefaultConfig()))
}

func TestAdvertiseConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	_, ok, err := advertiseConfig(cfg)
	require.NoError(t, err)
	assert.False(t, ok, "advertising is off by default")

	setFlag(t, listen, "0.0.0.0:4999")
	setFlag(t, mdnsName, "argus-lab")
	cfg, err = loadConfig()
	require.NoError(t, err)

	mcfg, ok, err := advertiseConfig(cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "argus-lab", mcfg.Instance)
	assert.Equal(t, 4999, mcfg.Port)
	assert.Contains(t, mcfg.TXT, "layout=compact")
}

func TestLoadConfig_RejectsDottedMDNSName(t *testing.T) {
	setFlag(t, mdnsName, "argus.local")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "mdns_instance")
}
