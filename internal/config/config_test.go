package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) (dir, file string) {
	dir = t.TempDir()
	file = "broker.conf"
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(contents), 0o600))
	return dir, file
}

func TestLoadBrokerConfig_Defaults(t *testing.T) {
	secret := "aa" // a too-short secret, unused: this test loads validSecretHex() below
	_ = secret
	dir, file := writeConfigFile(t, "adaptorsecret="+validSecretHex())
	cfg, err := LoadBrokerConfig(dir, file)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cfg.FeeRateMillis)
	assert.Equal(t, "info", cfg.DebugLevel)
}

func TestLoadBrokerConfig_MissingSecretErrors(t *testing.T) {
	dir, file := writeConfigFile(t, "feeratemillis=20")
	_, err := LoadBrokerConfig(dir, file)
	assert.Error(t, err)
}

func TestLoadBrokerConfig_InvalidSecretErrors(t *testing.T) {
	dir, file := writeConfigFile(t, "adaptorsecret=nothex")
	_, err := LoadBrokerConfig(dir, file)
	assert.Error(t, err)
}

func TestLoadBrokerConfig_ParsesMints(t *testing.T) {
	dir, file := writeConfigFile(t, "adaptorsecret="+validSecretHex()+"\n"+
		"mint.alice.url=https://alice.example\n"+
		"mint.alice.unit=sat\n"+
		"mint.bob.url=https://bob.example\n")
	cfg, err := LoadBrokerConfig(dir, file)
	require.NoError(t, err)
	require.Len(t, cfg.Mints, 2)

	byName := map[string]MintConfig{}
	for _, m := range cfg.Mints {
		byName[m.Name] = m
	}
	assert.Equal(t, "https://alice.example", byName["alice"].BaseURL)
	assert.Equal(t, "sat", byName["bob"].Unit) // defaults to "sat" when unset
}

func TestLoadBrokerConfig_MissingFileUsesDefaultsButStillNeedsSecret(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadBrokerConfig(dir, "does-not-exist.conf")
	assert.Error(t, err)
}

func validSecretHex() string {
	return "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
}
