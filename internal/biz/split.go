package biz

import (
	"github.com/shopspring/decimal"
)

// SplitRevenue 按平台抽成比例拆分收入。
// 平台份额四舍五入到分, 创作者份额取余数而不是独立取整,
// 保证 creator + platform == price 精确成立
func SplitRevenue(price, commissionRatePercent decimal.Decimal) (creatorAmount, platformAmount decimal.Decimal) {
	platformAmount = price.Mul(commissionRatePercent).Div(decimal.NewFromInt(100)).Round(2)
	creatorAmount = price.Sub(platformAmount)
	return creatorAmount, platformAmount
}
