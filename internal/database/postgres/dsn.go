package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
)

// buildConnConfig turns the handle credentials into a pgx connection
// config. Fields are set directly rather than formatted into a DSN so a
// secret never needs escaping.
func buildConnConfig(cfg *database.Config) (*pgx.ConnConfig, error) {
	target, err := database.ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	connCfg, err := pgx.ParseConfig("sslmode=disable")
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnErr, "invalid postgres config", err)
	}

	connCfg.Host = target.Host
	connCfg.Port = uint16(target.PortOr(defaultPort))
	connCfg.Database = target.Service
	connCfg.User = cfg.User
	connCfg.Password = cfg.Password
	connCfg.ConnectTimeout = cfg.ConnectTimeout
	connCfg.Fallbacks = nil
	connCfg.RuntimeParams["application_name"] = "empdb"

	return connCfg, nil
}
