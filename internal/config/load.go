// Package config loads the AstroGate YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"AstroGate/internal/model"
)

// Defaults applied to unset fields.
const (
	DefaultWireFormat     = "json"
	DefaultHubAddr        = "127.0.0.1:10000"
	DefaultScriptDir      = "scripts"
	DefaultStatusInterval = 2000
	DefaultBaud           = 115200
	DefaultReadTimeoutMs  = 500
	DefaultPathMax        = 64
	DefaultScriptMax      = 1024
	DefaultCharBlock      = 128
	DefaultTextMax        = 1024
	DefaultDelimiter      = ","
	DefaultLogLevel       = "info"
)

// Load reads a YAML config file, expands ${VAR} references, applies
// defaults and validates the result. When envFile is not empty and exists
// it is loaded into the environment first; variables already set win.
func Load(path, envFile string) (*model.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot load env file %q: %w", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	return Parse([]byte(ExpandEnv(string(data))))
}

// Parse unmarshals YAML, applies defaults and validates.
func Parse(data []byte) (*model.Config, error) {
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero valued setting.
func ApplyDefaults(cfg *model.Config) {
	setDefault(&cfg.Global.WireFormat, DefaultWireFormat)
	setDefault(&cfg.Global.HubAddr, DefaultHubAddr)
	setDefault(&cfg.Global.ScriptDir, DefaultScriptDir)
	setDefault(&cfg.Global.StatusIntervalMs, DefaultStatusInterval)
	setDefault(&cfg.Link.Baud, DefaultBaud)
	setDefault(&cfg.Link.ReadTimeoutMs, DefaultReadTimeoutMs)
	setDefault(&cfg.Limits.PathMax, DefaultPathMax)
	setDefault(&cfg.Limits.ScriptMax, DefaultScriptMax)
	setDefault(&cfg.Limits.CharBlock, DefaultCharBlock)
	setDefault(&cfg.Limits.TextMax, DefaultTextMax)
	setDefault(&cfg.CSV.Delimiter, DefaultDelimiter)
	setDefault(&cfg.Log.Level, DefaultLogLevel)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate rejects settings the gateway cannot run with.
func Validate(cfg *model.Config) error {
	var errs []error

	switch strings.ToLower(cfg.Global.WireFormat) {
	case "json", "msgpack", "cbor":
	default:
		errs = append(errs, fmt.Errorf("global.wire_format: unknown format %q", cfg.Global.WireFormat))
	}
	if cfg.Global.StatusIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("global.status_interval_ms: must not be negative"))
	}
	for name, v := range map[string]int{
		"limits.path_max":   cfg.Limits.PathMax,
		"limits.script_max": cfg.Limits.ScriptMax,
		"limits.char_block": cfg.Limits.CharBlock,
		"limits.text_max":   cfg.Limits.TextMax,
		"link.baud":         cfg.Link.Baud,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", name, v))
		}
	}
	if cfg.Limits.CharBlock > cfg.Limits.ScriptMax {
		errs = append(errs, fmt.Errorf("limits.char_block (%d) exceeds limits.script_max (%d)", cfg.Limits.CharBlock, cfg.Limits.ScriptMax))
	}
	if (cfg.LoRaWAN.NwkSKey == "") != (cfg.LoRaWAN.AppSKey == "") {
		errs = append(errs, fmt.Errorf("lorawan: nwk_skey and app_skey must be set together"))
	}
	return errors.Join(errs...)
}
