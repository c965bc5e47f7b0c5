// Package sign 实现支付网关的参数签名协议。
//
// 算法: 去掉 sign 字段和空值参数, 按 key 字典序排序, 拼接为 key=value&,
// 末尾追加 key=<secret>, 对整串做 MD5 并转大写十六进制。
package sign

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// SignField 签名参数在参数集中的字段名
const SignField = "sign"

// Sign 对参数集生成签名
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == SignField || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte('&')
	}
	sb.WriteString("key=")
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// Verify 校验参数集携带的签名。
// 始终重算后比对, 不信任调用方声明的任何校验结果。
func Verify(params map[string]string, secret string) bool {
	got, ok := params[SignField]
	if !ok || got == "" {
		return false
	}
	return Sign(params, secret) == strings.ToUpper(got)
}
