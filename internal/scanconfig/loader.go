package scanconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a strategy YAML file. Unknown fields fail the
// load immediately so a typo never silently falls back to a default.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse strategy config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, data, fmt.Errorf("validate strategy config: %w", err)
	}

	return &cfg, data, nil
}

// Hash returns the SHA-256 of the config's canonical JSON form. Struct
// field order makes the encoding deterministic, so the same strategy always
// hashes the same.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
