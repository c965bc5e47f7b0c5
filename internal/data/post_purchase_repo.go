package data

import (
	"context"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// postPurchaseRepo 内容购买记录仓库实现
type postPurchaseRepo struct {
	data *Data
	log  *log.Helper
}

// NewPostPurchaseRepo 创建内容购买记录仓库
func NewPostPurchaseRepo(data *Data, logger log.Logger) biz.PostPurchaseRepo {
	return &postPurchaseRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreatePurchase 创建购买记录并回填ID。
// user_id + post_id 上有唯一索引, 重复购买由数据库兜底
func (r *postPurchaseRepo) CreatePurchase(ctx context.Context, purchase *biz.PostPurchase) error {
	m := &model.PostPurchase{
		UserID:    purchase.UserID,
		PostID:    purchase.PostID,
		CreatorID: purchase.CreatorID,
		Price:     purchase.Price,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create post purchase for user %d post %d: %v", purchase.UserID, purchase.PostID, err)
		return err
	}
	purchase.ID = m.ID
	purchase.CreatedAt = m.CreatedAt
	return nil
}

// GetByUserAndPost 按用户+内容查询购买记录, 不存在时返回 nil
func (r *postPurchaseRepo) GetByUserAndPost(ctx context.Context, userID, postID uint64) (*biz.PostPurchase, error) {
	var m model.PostPurchase
	err := r.data.DB(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &biz.PostPurchase{
		ID:        m.ID,
		UserID:    m.UserID,
		PostID:    m.PostID,
		CreatorID: m.CreatorID,
		Price:     m.Price,
		CreatedAt: m.CreatedAt,
	}, nil
}
