package data

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/data/model"
	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerRepo 账本仓库实现。
// 余额字段只在这里变更, 且总是与条目写入在同一事务内
type ledgerRepo struct {
	data *Data
	log  *log.Helper
}

// NewLedgerRepo 创建账本仓库
func NewLedgerRepo(data *Data, logger log.Logger) biz.LedgerRepo {
	return &ledgerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// ApplyEntry 追加账本条目并等额变更余额。
// 锁余额行后校验出账不至为负, 再写余额和条目
func (r *ledgerRepo) ApplyEntry(ctx context.Context, entry *biz.LedgerEntry) error {
	db := r.data.DB(ctx)
	now := time.Now().UTC()

	var balance model.AccountBalance
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_type = ? AND owner_id = ?", entry.OwnerType, entry.OwnerID).
		First(&balance).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		balance = model.AccountBalance{
			OwnerType: entry.OwnerType,
			OwnerID:   entry.OwnerID,
			Credits:   decimal.Zero,
			Points:    decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(&balance).Error; err != nil {
			return err
		}
	} else if err != nil {
		r.log.Errorf("Failed to lock balance for %s/%d: %v", entry.OwnerType, entry.OwnerID, err)
		return err
	}

	switch entry.Stream {
	case constants.LedgerStreamCredit:
		next := balance.Credits.Add(entry.Amount)
		if entry.OwnerType == constants.LedgerOwnerUser && next.IsNegative() {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInsufficientBalance)
		}
		balance.Credits = next
	case constants.LedgerStreamPoint:
		next := balance.Points.Add(entry.Amount)
		if entry.OwnerType == constants.LedgerOwnerUser && next.IsNegative() {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInsufficientBalance)
		}
		balance.Points = next
	default:
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeLedgerAppendFailed)
	}

	balance.UpdatedAt = now
	if err := db.Save(&balance).Error; err != nil {
		r.log.Errorf("Failed to update balance for %s/%d: %v", entry.OwnerType, entry.OwnerID, err)
		return err
	}

	var metadata []byte
	if len(entry.Metadata) > 0 {
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
	}
	m := &model.LedgerEntry{
		Stream:      entry.Stream,
		OwnerType:   entry.OwnerType,
		OwnerID:     entry.OwnerID,
		Amount:      entry.Amount,
		Type:        entry.Type,
		Reason:      entry.Reason,
		Metadata:    datatypes.JSON(metadata),
		RelatedKind: entry.Related.Kind,
		RelatedID:   entry.Related.ID,
		CreatedAt:   now,
	}
	if err := db.Create(m).Error; err != nil {
		r.log.Errorf("Failed to append ledger entry for %s/%d: %v", entry.OwnerType, entry.OwnerID, err)
		return err
	}
	entry.ID = m.ID
	entry.CreatedAt = m.CreatedAt
	return nil
}

// GetBalance 查询余额快照, 没有账户行时返回零值
func (r *ledgerRepo) GetBalance(ctx context.Context, ownerType string, ownerID uint64) (*biz.Balance, error) {
	var m model.AccountBalance
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return &biz.Balance{Credits: decimal.Zero, Points: decimal.Zero}, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get balance for %s/%d: %v", ownerType, ownerID, err)
		return nil, err
	}
	return &biz.Balance{Credits: m.Credits, Points: m.Points}, nil
}

// SumEntries 汇总某主体某条流的全部条目
func (r *ledgerRepo) SumEntries(ctx context.Context, ownerType string, ownerID uint64, stream string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.data.DB(ctx).Model(&model.LedgerEntry{}).
		Select("SUM(amount)").
		Where("owner_type = ? AND owner_id = ? AND stream = ?", ownerType, ownerID, stream).
		Scan(&sum).Error
	if err != nil {
		r.log.Errorf("Failed to sum ledger entries for %s/%d: %v", ownerType, ownerID, err)
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// ListEntries 分页查询账本条目, 新的在前
func (r *ledgerRepo) ListEntries(ctx context.Context, ownerType string, ownerID uint64, stream string, page, pageSize int) ([]*biz.LedgerEntry, int, error) {
	db := r.data.DB(ctx)
	query := db.Model(&model.LedgerEntry{}).
		Where("owner_type = ? AND owner_id = ? AND stream = ?", ownerType, ownerID, stream)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []model.LedgerEntry
	offset := (page - 1) * pageSize
	if err := query.Order("ledger_entry_id DESC").Limit(pageSize).Offset(offset).Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list ledger entries for %s/%d: %v", ownerType, ownerID, err)
		return nil, 0, err
	}

	entries := make([]*biz.LedgerEntry, 0, len(models))
	for i := range models {
		m := &models[i]
		var metadata map[string]string
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, &biz.LedgerEntry{
			ID:        m.ID,
			Stream:    m.Stream,
			OwnerType: m.OwnerType,
			OwnerID:   m.OwnerID,
			Amount:    m.Amount,
			Type:      m.Type,
			Reason:    m.Reason,
			Metadata:  metadata,
			Related:   biz.RelatedRef{Kind: m.RelatedKind, ID: m.RelatedID},
			CreatedAt: m.CreatedAt,
		})
	}
	return entries, int(total), nil
}
