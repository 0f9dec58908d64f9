package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds engine configuration loaded from flags, env, or config file.
type Config struct {
	Input           string
	PGDSN           string
	RedisAddr       string
	LookupCacheFile string
	SkippedOut      string
	CursorName      string
	BatchSize       int
	CollectWorkers  int
	LogLevel        string
	Chains          []ChainConfig
}

// ChainConfig is the per-chain oracle and routing table. The engine never
// hardcodes addresses; everything here comes from the config file.
type ChainConfig struct {
	ChainID       uint64           `mapstructure:"chain-id"`
	RPCURL        string           `mapstructure:"rpc"`
	USDC          string           `mapstructure:"usdc"`
	USDCDecimals  uint8            `mapstructure:"usdc-decimals"`
	WETH          string           `mapstructure:"weth"`
	RewardToken   string           `mapstructure:"reward-token"`
	OracleV2      OracleDeployment `mapstructure:"oracle-v2"`
	OracleV3      OracleDeployment `mapstructure:"oracle-v3"`
	Connectors    []ConnectorToken `mapstructure:"connectors"`
	BlockInterval uint64           `mapstructure:"block-interval"`
}

// OracleDeployment locates one oracle contract version on a chain. An empty
// Address means the version was never deployed there.
type OracleDeployment struct {
	Address    string `mapstructure:"address"`
	StartBlock uint64 `mapstructure:"start-block"`
}

// Deployed reports whether this oracle version exists at the given block.
func (d OracleDeployment) Deployed(block uint64) bool {
	return d.Address != "" && block >= d.StartBlock
}

// ConnectorToken is a candidate routing hop for price discovery.
type ConnectorToken struct {
	Address      string `mapstructure:"address"`
	CreatedBlock uint64 `mapstructure:"created-block"`
	Decimals     uint8  `mapstructure:"decimals"`
	Whitelisted  bool   `mapstructure:"whitelisted"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", 256)
	v.SetDefault("collect-workers", 8)
	v.SetDefault("cursor-name", "engine")
	v.SetDefault("lookup-cache-file", "./data/pool_lookup.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var chains []ChainConfig
	if err := v.UnmarshalKey("chains", &chains); err != nil {
		return Config{}, fmt.Errorf("parse chains: %w", err)
	}

	cfg := Config{
		Input:           v.GetString("in"),
		PGDSN:           v.GetString("pg-dsn"),
		RedisAddr:       v.GetString("redis-addr"),
		LookupCacheFile: v.GetString("lookup-cache-file"),
		SkippedOut:      v.GetString("skipped-out"),
		CursorName:      v.GetString("cursor-name"),
		BatchSize:       v.GetInt("batch-size"),
		CollectWorkers:  v.GetInt("collect-workers"),
		LogLevel:        v.GetString("log-level"),
		Chains:          chains,
	}

	return cfg, nil
}

// Chain returns the config for a chain id, or nil when unconfigured.
func (c Config) Chain(chainID uint64) *ChainConfig {
	for i := range c.Chains {
		if c.Chains[i].ChainID == chainID {
			return &c.Chains[i]
		}
	}
	return nil
}
