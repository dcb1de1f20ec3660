package app

import (
	"os"
	"strconv"
	"time"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/koustreak/empdb/internal/filestore"
	"github.com/koustreak/empdb/internal/logger"
	"github.com/koustreak/empdb/internal/server"
	"go.yaml.in/yaml/v3"
)

// Defaults for the positional capacity and batch arguments.
const (
	DefaultCapacity = 64
	DefaultBatch    = 128

	// growableHint sizes the first allocation of the growable fetch.
	growableHint = 5000
)

// Environment variables consulted before the positional arguments.
const (
	EnvDriver = "EMPDB_DRIVER"
	EnvUser   = "EMPDB_USER"
	EnvPass   = "EMPDB_PASS"
	EnvTarget = "EMPDB_TARGET"
)

// Config is everything the command reads from its config file.
type Config struct {
	Database database.Config  `yaml:"database"`
	Log      logger.Config    `yaml:"log"`
	Export   filestore.Config `yaml:"export"`
	Server   server.Config    `yaml:"server"`

	Capacity   int           `yaml:"capacity"`    // bounded fetch capacity
	Batch      int           `yaml:"batch"`       // rows per fetch round trip
	PresignTTL time.Duration `yaml:"presign_ttl"` // lifetime of the link printed after an export
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Database:   *database.DefaultConfig(),
		Log:        logger.Config{Level: "info", Format: "console", TimeFormat: "rfc3339"},
		Export:     *filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin"),
		Server:     *server.DefaultConfig(),
		Capacity:   DefaultCapacity,
		Batch:      DefaultBatch,
		PresignTTL: 15 * time.Minute,
	}
}

// LoadFile merges the YAML file at path over cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.CodeErr, "failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errs.Wrap(errs.CodeErr, "failed to parse config file", err)
	}
	return nil
}

// ApplyEnv overrides the driver and credentials from the environment. Unset
// and empty variables are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	driver := string(cfg.Database.Driver)
	set(&driver, EnvDriver)
	cfg.Database.Driver = database.Driver(driver)
	set(&cfg.Database.User, EnvUser)
	set(&cfg.Database.Password, EnvPass)
	set(&cfg.Database.Target, EnvTarget)
}

// ApplyArgs applies the positional arguments
//
//	[user] [pass] [target] [capacity] [batch]
//
// A capacity or batch that is not a positive integer falls back to its
// default.
func ApplyArgs(cfg *Config, args []string) {
	at := func(i int) (string, bool) {
		if i < len(args) {
			return args[i], true
		}
		return "", false
	}
	if v, ok := at(0); ok {
		cfg.Database.User = v
	}
	if v, ok := at(1); ok {
		cfg.Database.Password = v
	}
	if v, ok := at(2); ok {
		cfg.Database.Target = v
	}
	if v, ok := at(3); ok {
		cfg.Capacity = positiveOr(v, DefaultCapacity)
	}
	if v, ok := at(4); ok {
		cfg.Batch = positiveOr(v, DefaultBatch)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultBatch
	}
}

func positiveOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
