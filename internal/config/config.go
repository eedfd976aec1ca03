// Package config loads broker and mint-client configuration from a flat
// key=value file, validated into a typed struct with a hex-encoded secret
// checked at load time.
package config

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MintConfig describes one mint this broker can route liquidity through.
type MintConfig struct {
	Name    string
	BaseURL string
	Unit    string
}

// BrokerConfig is the broker's full runtime configuration.
type BrokerConfig struct {
	// AdaptorSecret is the broker's 32-byte Schnorr adaptor seed, hex
	// encoded.
	AdaptorSecret string

	// FeeRateMillis is the broker's fee rate in thousandths
	// (fee = ceil(amount * FeeRateMillis / 1000)), e.g. 10 means 1%.
	FeeRateMillis uint64

	// QuoteTTL bounds how long a requested quote can wait for acceptQuote
	// before the broker refuses it as expired.
	QuoteTTL time.Duration

	// DebugLevel is one of trace/debug/info/warn/error/critical.
	DebugLevel string

	Mints []MintConfig

	extra map[string]string
}

// AdaptorSecretBytes decodes and validates AdaptorSecret.
func (c *BrokerConfig) AdaptorSecretBytes() ([32]byte, error) {
	var out [32]byte
	if c.AdaptorSecret == "" {
		return out, fmt.Errorf("config: missing adaptorsecret")
	}
	b, err := hex.DecodeString(c.AdaptorSecret)
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("config: invalid adaptorsecret: expected 64 hex chars (32 bytes)")
	}
	copy(out[:], b)
	return out, nil
}

// parseKV reads a flat "key=value" file, one entry per line, blank lines
// and lines starting with '#' ignored.
func parseKV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	out := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return out, nil
}

// LoadBrokerConfig loads a BrokerConfig from dataDir/configFile: read a flat
// key=value file, validate the adaptor secret, fall through to defaults for
// anything unset.
func LoadBrokerConfig(dataDir, configFile string) (*BrokerConfig, error) {
	path := configFile
	if dataDir != "" {
		path = dataDir + string(os.PathSeparator) + configFile
	}
	extra, err := parseKV(path)
	if err != nil {
		return nil, err
	}

	cfg := &BrokerConfig{
		AdaptorSecret: extra["adaptorsecret"],
		FeeRateMillis: 10,
		QuoteTTL:      2 * time.Minute,
		DebugLevel:    "info",
		extra:         extra,
	}

	if v, ok := extra["feeratemillis"]; ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid feeratemillis: %w", err)
		}
		cfg.FeeRateMillis = n
	}
	if v, ok := extra["quotettlseconds"]; ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid quotettlseconds: %w", err)
		}
		cfg.QuoteTTL = time.Duration(n) * time.Second
	}
	if v, ok := extra["debuglevel"]; ok {
		cfg.DebugLevel = v
	}

	if _, err := cfg.AdaptorSecretBytes(); err != nil {
		return nil, err
	}

	cfg.Mints = parseMints(extra)
	return cfg, nil
}

// parseMints reads mint.<name>.url and mint.<name>.unit entries out of the
// flat key space, e.g. "mint.alice.url=https://..." "mint.alice.unit=sat".
func parseMints(extra map[string]string) []MintConfig {
	byName := map[string]*MintConfig{}
	order := []string{}
	for k, v := range extra {
		if !strings.HasPrefix(k, "mint.") {
			continue
		}
		rest := strings.TrimPrefix(k, "mint.")
		name, field, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		mc, exists := byName[name]
		if !exists {
			mc = &MintConfig{Name: name, Unit: "sat"}
			byName[name] = mc
			order = append(order, name)
		}
		switch field {
		case "url":
			mc.BaseURL = v
		case "unit":
			mc.Unit = v
		}
	}
	out := make([]MintConfig, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

// Extra returns a raw config value by key, for callers that need a field
// this struct doesn't model yet.
func (c *BrokerConfig) Extra(key string) string {
	return c.extra[strings.ToLower(key)]
}
