package database

import (
	"fmt"
	"time"

	"github.com/koustreak/empdb/internal/errs"
)

// Driver identifies the database engine.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// TruncationPolicy decides what a fetch does when a text value does not fit
// its bounded destination. The fetch itself never fails unless the policy
// is TruncationFail.
type TruncationPolicy string

const (
	TruncationLog    TruncationPolicy = "log"    // keep the cut value, log a warning
	TruncationIgnore TruncationPolicy = "ignore" // keep the cut value silently
	TruncationFail   TruncationPolicy = "fail"   // abort the fetch with CodeErr
)

// Fixed credential storage, terminator included.
const (
	UserSize     = 32
	PasswordSize = 32
	TargetSize   = 128
)

// Credentials identify the account and the database to log in to.
type Credentials struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Target is the target descriptor, "//host[:port]/service" for network
	// engines, or a file path / ":memory:" for SQLite.
	Target string `yaml:"target"`
}

// Config holds all settings needed to open one connection handle.
type Config struct {
	// Driver is the database engine (e.g. DriverPostgres).
	Driver Driver `yaml:"driver"`

	Credentials `yaml:",inline"`

	// Table is the single table the row operations target.
	Table string `yaml:"table"`

	// Timeouts
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`   // time limit for logging in
	StatementTimeout time.Duration `yaml:"statement_timeout"` // per-statement deadline, 0 disables

	Truncation TruncationPolicy `yaml:"truncation"`
}

// DefaultConfig returns the settings used when neither a config file, the
// environment nor the command line say otherwise.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverPostgres,
		Credentials: Credentials{
			User:     "scott",
			Password: "tiger",
			Target:   "//localhost:5432/empdb",
		},
		Table:            "emp",
		ConnectTimeout:   10 * time.Second,
		StatementTimeout: 30 * time.Second,
		Truncation:       TruncationLog,
	}
}

// Validate checks the settings that would otherwise only fail at the
// database.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return errs.Newf(errs.CodeErr, "unsupported driver %q", c.Driver)
	}

	switch c.Truncation {
	case "", TruncationLog, TruncationIgnore, TruncationFail:
	default:
		return errs.Newf(errs.CodeErr, "unsupported truncation policy %q", c.Truncation)
	}

	if !ValidIdentifier(c.Table) {
		return errs.Newf(errs.CodeInvalidName, "invalid table name %q", c.Table)
	}

	if c.Target == "" {
		return errs.New(errs.CodeErr, "empty target descriptor")
	}
	return nil
}

// String renders the config without the secret.
func (c *Config) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", c.Driver, c.User, c.Target, c.Table)
}
