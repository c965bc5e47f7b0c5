package data

import (
	"context"
	stderrors "errors"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// planRepo 平台套餐仓库实现
type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo 创建平台套餐仓库
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toPlanBiz(m *model.Plan) *biz.Plan {
	return &biz.Plan{
		PlanID:       m.PlanID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		DurationDays: m.DurationDays,
	}
}

// CreatePlan 创建套餐
func (r *planRepo) CreatePlan(ctx context.Context, plan *biz.Plan) error {
	m := &model.Plan{
		PlanID:       plan.PlanID,
		Name:         plan.Name,
		Description:  plan.Description,
		Price:        plan.Price,
		DurationDays: plan.DurationDays,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create plan %s: %v", plan.PlanID, err)
		return err
	}
	return nil
}

// ListPlans 获取所有套餐
func (r *planRepo) ListPlans(ctx context.Context) ([]*biz.Plan, error) {
	var models []model.Plan
	if err := r.data.DB(ctx).Order("price ASC").Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list plans: %v", err)
		return nil, err
	}
	plans := make([]*biz.Plan, 0, len(models))
	for i := range models {
		plans = append(plans, toPlanBiz(&models[i]))
	}
	return plans, nil
}

// GetPlan 按ID查询套餐, 不存在时返回 nil
func (r *planRepo) GetPlan(ctx context.Context, planID string) (*biz.Plan, error) {
	var m model.Plan
	err := r.data.DB(ctx).Where("plan_id = ?", planID).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get plan %s: %v", planID, err)
		return nil, err
	}
	return toPlanBiz(&m), nil
}
