package config

// NodeConfig holds the node settings from powchain.yml
type NodeConfig struct {
	DataDir           string `yaml:"data_dir"`
	Database          string `yaml:"database"`
	GenesisDifficulty uint32 `yaml:"genesis_difficulty"`
	GenesisPayload    string `yaml:"genesis_payload"`
	MetricsAddr       string `yaml:"metrics_addr"`
}

// ConfigFile is the top-level structure for powchain.yml
type ConfigFile struct {
	Config NodeConfig `yaml:"config"`
}

// MiningConfig is the [mining] section of mining.ini
type MiningConfig struct {
	Difficulty    uint32 `ini:"difficulty"`
	MaxNonce      int64  `ini:"max_nonce"`
	CheckInterval uint64 `ini:"check_interval"`
}
