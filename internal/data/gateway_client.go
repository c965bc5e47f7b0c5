package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/conf"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/sign"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 30 * time.Second

// gatewayClient 支付网关客户端实现。出站参数用 MD5 签名, 与回调验签同一套算法
type gatewayClient struct {
	conf   *conf.Gateway
	client *resty.Client
	log    *log.Helper
}

// NewGatewayClient 创建支付网关客户端
func NewGatewayClient(c *conf.Bootstrap, logger log.Logger) biz.GatewayClient {
	timeout := defaultGatewayTimeout
	if c.Gateway.Timeout != "" {
		if d, err := time.ParseDuration(c.Gateway.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")
	return &gatewayClient{
		conf:   c.Gateway,
		client: client,
		log:    log.NewHelper(logger),
	}
}

// gatewayCreateResponse 网关下单应答报文
type gatewayCreateResponse struct {
	Status  string `json:"status"`
	OrderNo string `json:"orderno"` // 网关交易号
	PayURL  string `json:"payurl"`  // 收银台跳转地址
	Message string `json:"message"`
}

// CreatePayment 向网关发起下单。请求与应答原文都带回给调用方留档
func (g *gatewayClient) CreatePayment(ctx context.Context, req *biz.GatewayPaymentRequest) (*biz.GatewayPaymentResponse, error) {
	params := map[string]string{
		"version":   g.conf.Version,
		"partnerid": g.conf.PartnerID,
		"orderid":   req.OrderNo,
		"payamount": strconv.FormatInt(req.AmountMinor, 10),
		"payip":     req.PayerIP,
		"notifyurl": g.conf.NotifyURL,
		"returnurl": g.conf.ReturnURL,
		"paytype":   req.Method,
	}
	params[sign.SignField] = sign.Sign(params, g.conf.Secret)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	rawRequest, _ := json.Marshal(params)

	resp, err := g.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(g.conf.PayURL)
	if err != nil {
		g.log.Errorf("Gateway create payment request failed for order %s: %v", req.OrderNo, err)
		return nil, err
	}
	if resp.StatusCode() != 200 {
		g.log.Errorf("Gateway create payment returned HTTP %d for order %s", resp.StatusCode(), req.OrderNo)
		return nil, fmt.Errorf("gateway returned http %d", resp.StatusCode())
	}

	var body gatewayCreateResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		g.log.Errorf("Gateway create payment response decode failed for order %s: %v", req.OrderNo, err)
		return nil, err
	}
	if body.Status != constants.GatewayStatusSuccess {
		g.log.Errorf("Gateway rejected payment for order %s: status=%s message=%s", req.OrderNo, body.Status, body.Message)
		return nil, fmt.Errorf("gateway rejected payment: %s", body.Message)
	}

	return &biz.GatewayPaymentResponse{
		TradeNo:     body.OrderNo,
		RedirectURL: body.PayURL,
		RawRequest:  rawRequest,
		RawResponse: resp.Body(),
	}, nil
}
