package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the miner daemon and backing services.
type Config struct {
	NodeRPCURL      string `yaml:"node_rpc_url"`
	NodeRPCUser     string `yaml:"node_rpc_user"`
	NodeRPCPassword string `yaml:"node_rpc_password"`
	NodeZMQBlock    string `yaml:"node_zmq_block"` // zmqpubhashblock endpoint, empty disables

	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshMinGap   time.Duration `yaml:"refresh_min_gap"`
	IdlePoll        time.Duration `yaml:"idle_poll"`
	StatsEvery      uint64        `yaml:"stats_every"`
	SubmitTimeout   time.Duration `yaml:"submit_timeout"`

	MetricsListen        string        `yaml:"metrics_listen"`
	StatusLimit          int           `yaml:"status_limit"`
	NetworkStatsInterval time.Duration `yaml:"network_stats_interval"`

	JournalPath      string        `yaml:"journal_path"`
	PostgresDSN      string        `yaml:"postgres_dsn"` // takes precedence over journal_path
	JournalRetention time.Duration `yaml:"journal_retention"`
	JournalPruneCron string        `yaml:"journal_prune_cron"`

	BlockConfirmations int           `yaml:"block_confirmations"`
	BlockwatchInterval time.Duration `yaml:"blockwatch_interval"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used for anything the file leaves out.
func Default() Config {
	return Config{
		NodeRPCURL:           "http://127.0.0.1:8332",
		RPCTimeout:           10 * time.Second,
		RefreshInterval:      30 * time.Second,
		RefreshMinGap:        time.Second,
		IdlePoll:             100 * time.Millisecond,
		StatsEvery:           1000000,
		SubmitTimeout:        30 * time.Second,
		StatusLimit:          20,
		NetworkStatsInterval: 15 * time.Second,
		JournalPath:          "blocks.db",
		JournalRetention:     30 * 24 * time.Hour,
		JournalPruneCron:     "@daily",
		BlockConfirmations:   100,
		BlockwatchInterval:   time.Minute,
		LogLevel:             "info",
	}
}

// Load reads YAML config from disk over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NODE_RPC_URL"); v != "" {
		c.NodeRPCURL = v
	}
	if v := os.Getenv("NODE_RPC_USER"); v != "" {
		c.NodeRPCUser = v
	}
	if v := os.Getenv("NODE_RPC_PASSWORD"); v != "" {
		c.NodeRPCPassword = v
	}
	if v := os.Getenv("NODE_ZMQ_BLOCK"); v != "" {
		c.NodeZMQBlock = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MINER_JOURNAL_PATH"); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv("MINER_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
}

// Validate enforces required fields and basic sanity checks.
func (c Config) Validate() error {
	if c.NodeRPCURL == "" {
		return fmt.Errorf("node_rpc_url is required")
	}
	u, err := url.Parse(c.NodeRPCURL)
	if err != nil {
		return fmt.Errorf("node_rpc_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("node_rpc_url must be http or https, got %q", u.Scheme)
	}
	if c.NodeZMQBlock != "" && !strings.HasPrefix(c.NodeZMQBlock, "tcp://") && !strings.HasPrefix(c.NodeZMQBlock, "ipc://") {
		return fmt.Errorf("node_zmq_block must be a tcp:// or ipc:// endpoint")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be > 0")
	}
	if c.RefreshMinGap < 0 {
		return fmt.Errorf("refresh_min_gap must be >= 0")
	}
	if c.IdlePoll <= 0 {
		return fmt.Errorf("idle_poll must be > 0")
	}
	if c.StatsEvery == 0 {
		return fmt.Errorf("stats_every must be > 0")
	}
	if c.RPCTimeout <= 0 || c.SubmitTimeout <= 0 {
		return fmt.Errorf("rpc_timeout and submit_timeout must be > 0")
	}
	if c.NetworkStatsInterval <= 0 {
		return fmt.Errorf("network_stats_interval must be > 0")
	}
	if c.JournalPath == "" && c.PostgresDSN == "" {
		return fmt.Errorf("journal_path or postgres_dsn is required")
	}
	if c.JournalRetention <= 0 {
		return fmt.Errorf("journal_retention must be > 0")
	}
	if _, err := cron.ParseStandard(c.JournalPruneCron); err != nil {
		return fmt.Errorf("journal_prune_cron: %w", err)
	}
	if c.BlockConfirmations <= 0 {
		return fmt.Errorf("block_confirmations must be > 0")
	}
	if c.BlockwatchInterval <= 0 {
		return fmt.Errorf("blockwatch_interval must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}
