package config

// Storage selects the state database backend.
type Storage struct {
	Backend string `toml:"Backend" yaml:"Backend"`
}

// Exchange is the exchange the daemon registers on start.
type Exchange struct {
	ID              string `toml:"ID" yaml:"ID"`
	Admin           string `toml:"Admin" yaml:"Admin"`
	LiquidityFeeBps uint64 `toml:"LiquidityFeeBps" yaml:"LiquidityFeeBps"`
	ProtocolFeeBps  uint64 `toml:"ProtocolFeeBps" yaml:"ProtocolFeeBps"`
}

// Lending carries the constants applied by the lending engine.
type Lending struct {
	BaseInterestRate         uint64 `toml:"BaseInterestRate" yaml:"BaseInterestRate"`
	MinCollateralRatioBps    uint64 `toml:"MinCollateralRatioBps" yaml:"MinCollateralRatioBps"`
	LiquidationRewardDivisor uint64 `toml:"LiquidationRewardDivisor" yaml:"LiquidationRewardDivisor"`
}

// Clock maps wall time to block heights.
type Clock struct {
	GenesisUnix     int64 `toml:"GenesisUnix" yaml:"GenesisUnix"`
	BlockIntervalMs int64 `toml:"BlockIntervalMs" yaml:"BlockIntervalMs"`
}

// Journal points at the operation journal database. Empty disables it.
type Journal struct {
	DSN string `toml:"DSN" yaml:"DSN"`
}

type Logging struct {
	Env        string `toml:"Env" yaml:"Env"`
	File       string `toml:"File" yaml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"MaxAgeDays"`
	Debug      bool   `toml:"Debug" yaml:"Debug"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"Endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"Insecure"`
	Headers  string `toml:"Headers" yaml:"Headers"`
	Metrics  bool   `toml:"Metrics" yaml:"Metrics"`
	Traces   bool   `toml:"Traces" yaml:"Traces"`
}

// Auth guards mutating gateway routes with HS256 bearer tokens.
type Auth struct {
	Enabled    bool   `toml:"Enabled" yaml:"Enabled"`
	HMACSecret string `toml:"HMACSecret" yaml:"HMACSecret"`
	Issuer     string `toml:"Issuer" yaml:"Issuer"`
	Audience   string `toml:"Audience" yaml:"Audience"`
}

// RateLimit bounds requests per client. Zero disables limiting.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst" yaml:"Burst"`
}
