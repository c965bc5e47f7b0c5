package data

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupMockData 基于 sqlmock 构造 Data。
// 关闭 gorm 的默认事务包装, 期望里不用再铺 BEGIN/COMMIT
func setupMockData(t *testing.T) (*Data, sqlmock.Sqlmock, func()) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	closer := func() { _ = sqlDB.Close() }
	return &Data{db: gdb}, mock, closer
}

func testLogger() log.Logger {
	return log.NewStdLogger(discardWriter{})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
