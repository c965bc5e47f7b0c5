package data

import (
	"context"
	"regexp"
	"testing"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestCreatePayment(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewPaymentRepo(data, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `payment_record` WHERE order_id = ? AND status IN (?,?)")).
		WithArgs(5, constants.PaymentStatusPending, constants.PaymentStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_record`")).
		WillReturnResult(sqlmock.NewResult(7, 1))

	payment := &biz.PaymentRecord{
		PaymentNo: "P20260901000001",
		OrderID:   5,
		Gateway:   "fake",
		Method:    "alipay",
		Amount:    dec("100.00"),
		Status:    constants.PaymentStatusPending,
	}
	require.NoError(t, repo.CreatePayment(context.Background(), payment))
	require.Equal(t, uint64(7), payment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentRejectsOpenDuplicate(t *testing.T) {
	data, mock, closer := setupMockData(t)
	defer closer()
	repo := NewPaymentRepo(data, testLogger())

	// 已有未完结支付单时拒绝再建, 不发 INSERT
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `payment_record` WHERE order_id = ? AND status IN (?,?)")).
		WithArgs(5, constants.PaymentStatusPending, constants.PaymentStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	err := repo.CreatePayment(context.Background(), &biz.PaymentRecord{
		PaymentNo: "P20260901000002",
		OrderID:   5,
		Gateway:   "fake",
		Method:    "alipay",
		Amount:    dec("100.00"),
		Status:    constants.PaymentStatusPending,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
