package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mezonai/powchain/block"
	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/pow"
	"github.com/mezonai/powchain/store"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "config/powchain.yml"
	DefaultMiningConfigPath = "config/mining.ini"

	DefaultDataDir    = "./data/chain"
	DefaultDatabase   = string(store.LevelDBStoreType)
	DefaultDifficulty = 4

	// every nibble of a SHA-256 hex digest
	maxDifficulty = block.HashHexLen
)

func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		DataDir:           DefaultDataDir,
		Database:          DefaultDatabase,
		GenesisDifficulty: DefaultDifficulty,
		GenesisPayload:    block.GenesisPayload,
	}
}

func DefaultMiningConfig() *MiningConfig {
	return &MiningConfig{
		Difficulty:    DefaultDifficulty,
		MaxNonce:      pow.DefaultMaxNonce,
		CheckInterval: pow.DefaultCheckInterval,
	}
}

// LoadNodeConfig reads powchain.yml. A missing file yields the defaults; keys
// absent from the file keep their default values.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfgFile := ConfigFile{Config: *DefaultNodeConfig()}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logx.Warn("CONFIG", "Node config ", path, " not found, using defaults")
			return &cfgFile.Config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfgFile); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfgFile.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node config %s: %w", path, err)
	}

	logx.Info("CONFIG", "Loaded node config from ", path, ": database=", cfgFile.Config.Database, " data_dir=", cfgFile.Config.DataDir)
	return &cfgFile.Config, nil
}

func (c *NodeConfig) Validate() error {
	sc := c.StoreConfig()
	if sc.Type == store.MemoryStoreType {
		return fmt.Errorf("database %q cannot hold a persistent chain", c.Database)
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	if c.GenesisDifficulty > maxDifficulty {
		return fmt.Errorf("genesis_difficulty %d exceeds %d", c.GenesisDifficulty, maxDifficulty)
	}
	return nil
}

// StoreConfig maps the node settings onto a store factory config.
func (c *NodeConfig) StoreConfig() *store.StoreConfig {
	return &store.StoreConfig{
		Type:      store.StoreType(c.Database),
		Directory: c.DataDir,
	}
}

// LoadMiningConfig reads the [mining] section of an .ini file
func LoadMiningConfig(path string) (*MiningConfig, error) {
	miningCfg := DefaultMiningConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logx.Warn("CONFIG", "Mining config ", path, " not found, using defaults")
		return miningCfg, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Section("mining").MapTo(miningCfg); err != nil {
		return nil, err
	}
	if err := miningCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mining config %s: %w", path, err)
	}
	return miningCfg, nil
}

func (c *MiningConfig) Validate() error {
	if c.Difficulty > maxDifficulty {
		return fmt.Errorf("difficulty %d exceeds %d", c.Difficulty, maxDifficulty)
	}
	if c.MaxNonce < 0 {
		return fmt.Errorf("max_nonce must not be negative")
	}
	if c.CheckInterval == 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	return nil
}

// MinerOptions configures a pow.Miner from the mining section.
func (c *MiningConfig) MinerOptions() []pow.Option {
	return []pow.Option{
		pow.WithMaxNonce(c.MaxNonce),
		pow.WithCheckInterval(c.CheckInterval),
	}
}
