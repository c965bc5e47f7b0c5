package data

import (
	"context"
	"regexp"
	"testing"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func balanceColumns() []string {
	return []string{"account_balance_id", "owner_type", "owner_id", "credits", "points", "created_at", "updated_at"}
}

func TestGetBalance(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `account_balance` WHERE owner_type = ? AND owner_id = ?")).
		WithArgs(constants.LedgerOwnerUser, 100, 1).
		WillReturnRows(sqlmock.NewRows(balanceColumns()).
			AddRow(1, "user", 100, "42.50", "300", now, now))

	balance, err := repo.GetBalance(context.Background(), constants.LedgerOwnerUser, 100)
	require.NoError(t, err)
	require.True(t, balance.Credits.Equal(dec("42.50")))
	require.True(t, balance.Points.Equal(dec("300")))
	require.NoError(t, mock.ExpectationsWereMet())
}

// 没有账户行的主体按零余额处理, 不报错
func TestGetBalanceNoAccountRow(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `account_balance` WHERE owner_type = ? AND owner_id = ?")).
		WithArgs(constants.LedgerOwnerUser, 404, 1).
		WillReturnRows(sqlmock.NewRows(balanceColumns()))

	balance, err := repo.GetBalance(context.Background(), constants.LedgerOwnerUser, 404)
	require.NoError(t, err)
	require.True(t, balance.Credits.IsZero())
	require.True(t, balance.Points.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSumEntries(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(amount) FROM `ledger_entry` WHERE owner_type = ? AND owner_id = ? AND stream = ?")).
		WithArgs(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit).
		WillReturnRows(sqlmock.NewRows([]string{"SUM(amount)"}).AddRow("170.00"))

	sum, err := repo.SumEntries(context.Background(), constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit)
	require.NoError(t, err)
	require.True(t, sum.Equal(dec("170.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}

// 没有任何条目时 SUM 返回 NULL, 按零处理
func TestSumEntriesEmpty(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(amount) FROM `ledger_entry`")).
		WithArgs(constants.LedgerOwnerUser, 404, constants.LedgerStreamCredit).
		WillReturnRows(sqlmock.NewRows([]string{"SUM(amount)"}).AddRow(nil))

	sum, err := repo.SumEntries(context.Background(), constants.LedgerOwnerUser, 404, constants.LedgerStreamCredit)
	require.NoError(t, err)
	require.True(t, sum.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntryNewAccount(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	// 无账户行: 先建零余额行, 再走正常的余额变更和条目写入
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `account_balance` WHERE owner_type = ? AND owner_id = ?") + ".*FOR UPDATE").
		WithArgs(constants.LedgerOwnerUser, 100, 1).
		WillReturnRows(sqlmock.NewRows(balanceColumns()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `account_balance`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `account_balance` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `ledger_entry`")).
		WillReturnResult(sqlmock.NewResult(9, 1))

	entry := &biz.LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerUser,
		OwnerID:   100,
		Amount:    dec("50.00"),
		Type:      constants.LedgerTypeEarned,
		Reason:    constants.LedgerReasonRecharge,
		Metadata:  map[string]string{"order_no": "R123"},
	}
	require.NoError(t, repo.ApplyEntry(context.Background(), entry))
	require.Equal(t, uint64(9), entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntryInsufficientBalance(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `account_balance` WHERE owner_type = ? AND owner_id = ?") + ".*FOR UPDATE").
		WithArgs(constants.LedgerOwnerUser, 100, 1).
		WillReturnRows(sqlmock.NewRows(balanceColumns()).
			AddRow(1, "user", 100, "5.00", "0", now, now))

	// 出账导致余额为负: 拒绝, 且锁定后不再发任何写语句
	err := repo.ApplyEntry(context.Background(), &biz.LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerUser,
		OwnerID:   100,
		Amount:    dec("-10.00"),
		Type:      constants.LedgerTypeSpent,
		Reason:    constants.LedgerReasonSubscribeCreator,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// 平台归集账户允许为负, 不触发余额校验
func TestApplyEntryPlatformMayGoNegative(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewLedgerRepo(data, testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `account_balance` WHERE owner_type = ? AND owner_id = ?") + ".*FOR UPDATE").
		WithArgs(constants.LedgerOwnerPlatform, constants.PlatformAccountID, 1).
		WillReturnRows(sqlmock.NewRows(balanceColumns()).
			AddRow(2, "platform", 1, "3.00", "0", now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `account_balance` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `ledger_entry`")).
		WillReturnResult(sqlmock.NewResult(10, 1))

	err := repo.ApplyEntry(context.Background(), &biz.LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerPlatform,
		OwnerID:   constants.PlatformAccountID,
		Amount:    dec("-10.00"),
		Type:      constants.LedgerTypeSpent,
		Reason:    constants.LedgerReasonPlatformCommission,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
