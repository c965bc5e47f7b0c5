package sign

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignDeterministic(t *testing.T) {
	params := map[string]string{
		"partnerorderid": "R1234567890",
		"orderno":        "GW20250101",
		"orderstatus":    "1",
		"payamount":      "10000",
	}

	s1 := Sign(params, "secret")
	s2 := Sign(params, "secret")
	assert.Equal(t, s1, s2)
	assert.Len(t, s1, 32)
	assert.Equal(t, strings.ToUpper(s1), s1)
}

func TestSignIgnoresEmptyValuesAndSignField(t *testing.T) {
	base := map[string]string{
		"partnerorderid": "R1",
		"orderstatus":    "1",
	}
	withNoise := map[string]string{
		"partnerorderid": "R1",
		"orderstatus":    "1",
		"remark":         "",
		"sign":           "DEADBEEF",
	}
	assert.Equal(t, Sign(base, "k"), Sign(withNoise, "k"))
}

func TestVerify(t *testing.T) {
	params := map[string]string{
		"partnerorderid": "R1234567890",
		"orderno":        "GW20250101",
		"orderstatus":    "1",
		"payamount":      "10000",
	}
	params["sign"] = Sign(params, "secret")

	assert.True(t, Verify(params, "secret"))
	assert.False(t, Verify(params, "wrong-secret"))
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	params := map[string]string{
		"partnerorderid": "R1234567890",
		"orderstatus":    "1",
		"payamount":      "10000",
	}
	params["sign"] = Sign(params, "secret")

	// 改动金额但保留旧签名
	params["payamount"] = "1"
	assert.False(t, Verify(params, "secret"))
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	params := map[string]string{"partnerorderid": "R1"}
	assert.False(t, Verify(params, "secret"))

	params["sign"] = ""
	assert.False(t, Verify(params, "secret"))
}
