// Package model defines shared configuration structures used to initialize AstroGate.
package model

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Global  GlobalConfig  `yaml:"global"`
	Link    LinkConfig    `yaml:"link"`
	Limits  LimitsConfig  `yaml:"limits"`
	CSV     CSVConfig     `yaml:"csv"`
	Store   StoreConfig   `yaml:"store"`
	LoRaWAN LoRaWANConfig `yaml:"lorawan"`
	Log     LogConfig     `yaml:"log"`
}

// GlobalConfig defines process wide settings.
type GlobalConfig struct {
	WireFormat       string `yaml:"wire_format"`        // json/msgpack/cbor
	HubAddr          string `yaml:"hub_addr"`           // address for the hub (e.g. "127.0.0.1:10000")
	AuthToken        string `yaml:"auth_token"`         // bearer token for hub commands; empty disables the check
	ScriptDir        string `yaml:"script_dir"`         // local scripts must live under this directory
	StatusIntervalMs int    `yaml:"status_interval_ms"` // status packet period
}

// LinkConfig describes the serial link to the Pi.
type LinkConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// LimitsConfig bounds the outbound and inbound message fields.
type LimitsConfig struct {
	PathMax   int `yaml:"path_max"`   // script-file field capacity
	ScriptMax int `yaml:"script_max"` // script-text field capacity
	CharBlock int `yaml:"char_block"` // file read block size
	TextMax   int `yaml:"text_max"`   // inbound CSV parameter text capacity
}

// CSVConfig configures the telemetry decoder.
type CSVConfig struct {
	Delimiter string `yaml:"delimiter"`
}

// StoreConfig configures the history database.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables the store
}

// LoRaWANConfig holds ABP session keys (hex) for uplink telemetry.
type LoRaWANConfig struct {
	NwkSKey string `yaml:"nwk_skey"`
	AppSKey string `yaml:"app_skey"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}
