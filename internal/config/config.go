package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	JournalMemory   = "memory"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

const (
	DefaultPort            = 8080
	DefaultTemporalHost    = "localhost:7233"
	DefaultTaskQueue       = "flight-surety-oracles"
	DefaultShutdownTimeout = "30s"
)

type Config struct {
	BindAddr     string `yaml:"bindAddr"     envconfig:"bind_addr"`
	Port         uint   `yaml:"port"         envconfig:"port"`
	TemporalHost string `yaml:"temporalHost" envconfig:"temporal_host"`
	TaskQueue    string `yaml:"taskQueue"    envconfig:"task_queue"`
	// DispatchOracleRequests starts an oracle workflow for every status request.
	DispatchOracleRequests bool `yaml:"dispatchOracleRequests" envconfig:"dispatch_oracle_requests"`

	JournalDriver string `yaml:"journalDriver" envconfig:"journal_driver"`
	DatabaseURL   string `yaml:"databaseUrl"   envconfig:"database_url"`
	DataDir       string `yaml:"dataDir"       envconfig:"data_dir"`

	Owner                    string `yaml:"owner"                    envconfig:"owner"`
	RequireRegisteredOracles bool   `yaml:"requireRegisteredOracles" envconfig:"require_registered_oracles"`
	// AirlineSettlement lets an airline finalize its own flights without
	// oracle consensus. Meant for test harnesses.
	AirlineSettlement bool `yaml:"airlineSettlement" envconfig:"airline_settlement"`

	// Worker settings
	APIURL      string `yaml:"apiUrl"      envconfig:"api_url"`
	OracleCount int    `yaml:"oracleCount" envconfig:"oracle_count"`
	OracleSeed  int64  `yaml:"oracleSeed"  envconfig:"oracle_seed"`

	ShutdownTimeout string `yaml:"shutdownTimeout" envconfig:"shutdown_timeout"`
	Debug           bool   `yaml:"debug"           envconfig:"debug"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		BindAddr:                 "0.0.0.0",
		Port:                     DefaultPort,
		TemporalHost:             DefaultTemporalHost,
		TaskQueue:                DefaultTaskQueue,
		DispatchOracleRequests:   true,
		JournalDriver:            JournalMemory,
		DataDir:                  ".flight-surety",
		RequireRegisteredOracles: true,
		APIURL:                   "http://localhost:8080",
		OracleCount:              20,
		OracleSeed:               1,
		ShutdownTimeout:          DefaultShutdownTimeout,
	}
}

// LoadConfig overlays the YAML file (if any) and then SURETY_* environment
// variables onto the defaults. When configFile is empty it looks for
// ~/.flight-surety/config.yaml and then /etc/flight-surety/config.yaml.
func LoadConfig(configFile string) (*Config, error) {
	cfg := Default()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".flight-surety", "config.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/flight-surety/config.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("surety", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.JournalDriver {
	case JournalMemory, JournalSQLite:
	case JournalPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("journal driver %q requires databaseUrl", c.JournalDriver)
		}
	default:
		return fmt.Errorf("invalid journalDriver: %q (must be 'memory', 'postgres' or 'sqlite')", c.JournalDriver)
	}
	if c.Owner != "" {
		if _, err := ledger.ParseAddress(c.Owner); err != nil {
			return fmt.Errorf("invalid owner: %w", err)
		}
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
	}
	if c.OracleCount < 0 {
		return fmt.Errorf("invalid oracleCount: %d", c.OracleCount)
	}
	return nil
}

// OwnerAddress returns the configured ledger owner.
func (c *Config) OwnerAddress() (ledger.Address, error) {
	if c.Owner == "" {
		return "", fmt.Errorf("owner address is not configured")
	}
	return ledger.ParseAddress(c.Owner)
}

// ListenAddr is the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// ShutdownDuration returns the parsed shutdown timeout.
func (c *Config) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}
