package conn

import (
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/database/mysql"
	"github.com/koustreak/empdb/internal/database/postgres"
	"github.com/koustreak/empdb/internal/database/sqlite"
	"github.com/koustreak/empdb/internal/errs"
)

func openerFor(d database.Driver) (database.Opener, error) {
	switch d {
	case database.DriverPostgres:
		return postgres.Open, nil
	case database.DriverMySQL:
		return mysql.Open, nil
	case database.DriverSQLite:
		return sqlite.Open, nil
	default:
		return nil, errs.Newf(errs.CodeErr, "unsupported driver %q", d)
	}
}
