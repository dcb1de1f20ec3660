package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		number uint16
		want   errs.Code
	}{
		{name: "nowait lock", number: 3572, want: errs.CodeLockTableFailed},
		{name: "lock wait timeout", number: 1205, want: errs.CodeLockTableFailed},
		{name: "deadlock", number: 1213, want: errs.CodeTxRollback},
		{name: "max execution time", number: 3024, want: errs.CodeTimeout},
		{name: "duplicate entry", number: 1062, want: errs.CodeErr},
		{name: "unknown column", number: 1054, want: errs.CodeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			myErr := &gomysql.MySQLError{Number: tt.number, SQLState: [5]byte{'H', 'Y', '0', '0', '0'}, Message: tt.name}
			st, ok := classify(myErr)
			require.True(t, ok)
			assert.Equal(t, tt.want, st.Class)
			assert.Equal(t, -int64(tt.number), st.Code)
			assert.Equal(t, "HY000", st.SQLState)
			assert.False(t, st.OK())
		})
	}

	_, ok := classify(errors.New("not a mysql error"))
	assert.False(t, ok)

	st, ok := classify(gomysql.ErrInvalidConn)
	require.True(t, ok)
	assert.Equal(t, errs.CodeConnUnknown, st.Class)
}

func TestMapConnectError(t *testing.T) {
	err := mapConnectError(&gomysql.MySQLError{Number: 1045, Message: "Access denied"}, "failed to log in")
	assert.Equal(t, errs.CodeConnErr, err.Code)

	err = mapConnectError(context.DeadlineExceeded, "failed to log in")
	assert.Equal(t, errs.CodeTimeout, err.Code)
}

func TestBuildDSN(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.Driver = database.DriverMySQL
	cfg.Target = "//mysql.local/hr"
	cfg.Password = "ti:ger@"
	cfg.ConnectTimeout = 2 * time.Second

	dsn, err := buildDSN(cfg)
	require.NoError(t, err)

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "scott", parsed.User)
	assert.Equal(t, "ti:ger@", parsed.Passwd)
	assert.Equal(t, "mysql.local:3306", parsed.Addr)
	assert.Equal(t, "hr", parsed.DBName)
	assert.Equal(t, 2*time.Second, parsed.Timeout)
	assert.True(t, parsed.ParseTime)
}
