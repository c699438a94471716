package config

import (
	"fmt"
	"silo-snapshots/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config 定义整个配置的结构
type Config struct {
	Log          LogConfig      `mapstructure:"log"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Kafka        KafkaConfig    `mapstructure:"kafka"`
	Monitor      MonitorConfig  `mapstructure:"monitor"`
	Explorer     ExplorerConfig `mapstructure:"explorer"`
	Snapshot     SnapshotConfig `mapstructure:"snapshot"`
	Markets      []MarketConfig `mapstructure:"markets"`
	EvmClientURL string         `mapstructure:"evm_client_rawurl"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers       string `mapstructure:"brokers"`
	TopicSnapshot string `mapstructure:"topic_snapshot"`
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

// ExplorerConfig etherscan-style block explorer API access.
type ExplorerConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	RateLimit int    `mapstructure:"rate_limit"`
	Timeout   int    `mapstructure:"timeout"`
}

// SnapshotConfig controls how often snapshots are taken and how RPC
// traffic is shaped while replaying transfers.
type SnapshotConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	RPCRateLimit    int `mapstructure:"rpc_rate_limit"`
	RPCMaxRetries   int `mapstructure:"rpc_max_retries"`
}

// MarketConfig is one tracked Silo market as written in the config file.
type MarketConfig struct {
	IntegrationID     string `mapstructure:"integration_id"`
	SiloAddress       string `mapstructure:"silo_address"`
	NonBorrowableAddr string `mapstructure:"non_borrowable_address"`
	SharesDecimals    uint8  `mapstructure:"shares_decimals"`
	StartBlock        uint64 `mapstructure:"start_block"`
}

func InitConfig() Config {
	var config Config

	viper.SetConfigName("config.worker")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config/")

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	if err := mapstructure.Decode(viper.AllSettings(), &config); err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	return config
}

func WatchConfig(config *Config) {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := InitConfig()
		*config = newConfig
		logger.SetLogLevel(config.Log.Level)
	})
}
