package mysql

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/empdb/internal/database"
)

// buildDSN constructs the MySQL DSN through the driver's own Config so that
// credentials are escaped correctly.
func buildDSN(cfg *database.Config) (string, error) {
	target, err := database.ParseTarget(cfg.Target)
	if err != nil {
		return "", err
	}

	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", target.Host, target.PortOr(defaultPort))
	mc.DBName = target.Service
	mc.Timeout = cfg.ConnectTimeout
	mc.ParseTime = true
	mc.Params = map[string]string{"autocommit": "1"}

	return mc.FormatDSN(), nil
}
