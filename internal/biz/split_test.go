package biz

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplitRevenue(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		rate     string
		creator  string
		platform string
	}{
		{"even split", "100.00", "30", "70.00", "30.00"},
		{"fifteen percent", "100.00", "15", "85.00", "15.00"},
		{"rounds platform share", "9.99", "30", "6.99", "3.00"},
		{"sub cent rate", "10.00", "33.33", "6.67", "3.33"},
		{"tiny price", "0.01", "30", "0.01", "0.00"},
		{"full commission", "50.00", "100", "0.00", "50.00"},
		{"zero commission", "50.00", "0", "50.00", "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creator, platform := SplitRevenue(decimal.RequireFromString(tc.price), decimal.RequireFromString(tc.rate))
			require.True(t, creator.Equal(decimal.RequireFromString(tc.creator)),
				"creator share: got %s, want %s", creator, tc.creator)
			require.True(t, platform.Equal(decimal.RequireFromString(tc.platform)),
				"platform share: got %s, want %s", platform, tc.platform)
		})
	}
}

// 创作者份额取余数, 任意输入下两份之和必须精确等于价格
func TestSplitRevenueSumsExactly(t *testing.T) {
	prices := []string{"0.01", "0.03", "1.99", "9.99", "29.90", "100.00", "12345.67"}
	rates := []string{"0", "1", "15", "30", "33.33", "50", "99.99", "100"}
	for _, p := range prices {
		for _, r := range rates {
			price := decimal.RequireFromString(p)
			creator, platform := SplitRevenue(price, decimal.RequireFromString(r))
			require.True(t, creator.Add(platform).Equal(price),
				"price=%s rate=%s: %s + %s != %s", p, r, creator, platform, p)
			// 平台份额不得出现分以下的尾数
			require.True(t, platform.Equal(platform.Round(2)),
				"price=%s rate=%s: platform share %s not cent precision", p, r, platform)
		}
	}
}
