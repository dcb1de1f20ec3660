// Package sqlite opens database.Session values on a SQLite file through the
// pure-Go modernc.org/sqlite driver. It needs no server, which makes it the
// engine the test suites and the local demo run against.
package sqlite

import (
	"context"
	"strings"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/database/sqlconn"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Open opens the database file named by cfg.Target. User and password are
// ignored; SQLite has no login.
func Open(ctx context.Context, cfg *database.Config) (database.Session, error) {
	s, err := sqlconn.Open(ctx, "sqlite", buildDSN(cfg.Target), database.DialectSQLite, classify)
	if err != nil {
		return nil, mapConnectError(err, "failed to open database")
	}
	return s, nil
}

// buildDSN accepts a bare path, a file: URI or ":memory:". Lock waits are
// disabled so a contended write lock fails at once instead of blocking.
func buildDSN(target string) string {
	target = strings.TrimPrefix(target, "sqlite://")
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "_pragma=busy_timeout(0)"
}
