// Package mysql opens database.Session values on MySQL through
// go-sql-driver/mysql.
package mysql

import (
	"context"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/database/sqlconn"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

const defaultPort = 3306

// Open logs in with cfg and returns a Session pinned to one connection.
func Open(ctx context.Context, cfg *database.Config) (database.Session, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	s, err := sqlconn.Open(ctx, "mysql", dsn, database.DialectMySQL, classify)
	if err != nil {
		return nil, mapConnectError(err, "failed to log in")
	}
	return s, nil
}
