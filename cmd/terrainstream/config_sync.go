package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"terrainstream/internal/config"
)

// writeConfigFromEnv materialises a configuration handed over through the
// environment at cfgPath so the normal loading path picks it up. Fields the
// payload omits keep their defaults.
func writeConfigFromEnv(cfgPath string) (bool, error) {
	jsonPayload := os.Getenv("TERRAIN_CONFIG_JSON")
	yamlPayload := os.Getenv("TERRAIN_CONFIG_YAML_B64")

	if jsonPayload == "" && yamlPayload == "" {
		return false, nil
	}
	if cfgPath == "" {
		return false, errors.New("environment provided configuration but no -config path supplied")
	}

	cfg := config.Default()
	if jsonPayload != "" {
		if err := config.Decode([]byte(jsonPayload), config.FormatJSON, cfg); err != nil {
			return false, fmt.Errorf("decode env config json: %w", err)
		}
	} else {
		data, err := base64.StdEncoding.DecodeString(yamlPayload)
		if err != nil {
			return false, fmt.Errorf("decode env config yaml: %w", err)
		}
		if err := config.Decode(data, config.FormatYAML, cfg); err != nil {
			return false, fmt.Errorf("decode env config yaml: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("validate env config: %w", err)
	}

	dir := filepath.Dir(cfgPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal config json: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}
