package server

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/url"
	"strconv"

	"github.com/gaoyong06/go-pkg/health"
	"github.com/gaoyong06/go-pkg/middleware/i18n"

	"xinyuan_tech/creator-billing-service/internal/auth"
	"xinyuan_tech/creator-billing-service/internal/conf"
	"xinyuan_tech/creator-billing-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, billing *service.BillingService, callback *service.CallbackService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			// 添加 i18n 中间件
			i18n.Middleware(),
			// 从网关注入的 Header 中提取用户身份
			authMiddleware(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	srv := http.NewServer(opts...)

	registerBillingRoutes(srv, billing)
	registerCallbackRoutes(srv, callback)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse("creator-billing-service"))
	})

	return srv
}

// authMiddleware 认证中间件。用户身份由上游网关鉴权后通过
// X-User-Id / X-User-Role Header 传入
func authMiddleware() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromServerContext(ctx); ok {
				if v := tr.RequestHeader().Get("X-User-Id"); v != "" {
					if uid, err := strconv.ParseUint(v, 10, 64); err == nil {
						ctx = auth.WithUID(ctx, uid)
					}
				}
				if role := tr.RequestHeader().Get("X-User-Role"); role != "" {
					ctx = auth.WithRole(ctx, auth.Role(role))
				}
			}
			return handler(ctx, req)
		}
	}
}

// handle 把业务调用挂到路由中间件链上并编码应答
func handle(ctx http.Context, fn func(ctx context.Context) (interface{}, error)) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return fn(c)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// emptyReply 无数据应答
type emptyReply struct {
	Success bool `json:"success"`
}

func registerBillingRoutes(srv *http.Server, s *service.BillingService) {
	r := srv.Route("/v1")

	r.POST("/orders", func(ctx http.Context) error {
		var req service.CreatePurchaseIntentRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.CreatePurchaseIntent(c, &req)
		})
	})

	r.GET("/orders/{order_no}", func(ctx http.Context) error {
		orderNo := ctx.Vars().Get("order_no")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.GetOrder(c, orderNo)
		})
	})

	r.POST("/subscriptions/creators", func(ctx http.Context) error {
		var req service.SubscribeCreatorRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.SubscribeCreator(c, &req)
		})
	})

	r.POST("/subscriptions/creators/renew", func(ctx http.Context) error {
		var req service.SubscribeCreatorRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.RenewCreatorSubscription(c, &req)
		})
	})

	r.POST("/subscriptions/creators/cancel", func(ctx http.Context) error {
		var req service.CancelSubscriptionRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return &emptyReply{Success: true}, s.CancelSubscription(c, &req)
		})
	})

	r.POST("/subscriptions/creators/auto-renew", func(ctx http.Context) error {
		var req service.SetAutoRenewRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return &emptyReply{Success: true}, s.SetAutoRenew(c, &req)
		})
	})

	r.GET("/subscriptions/creators/{creator_id}/status", func(ctx http.Context) error {
		creatorID, err := strconv.ParseUint(ctx.Vars().Get("creator_id"), 10, 64)
		if err != nil {
			return kerrors.BadRequest("INVALID_ARGUMENT", "invalid creator_id")
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.GetSubscriptionStatus(c, creatorID)
		})
	})

	r.GET("/plans", func(ctx http.Context) error {
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.ListPlans(c)
		})
	})

	r.POST("/subscriptions/plans/cancel", func(ctx http.Context) error {
		var req service.CancelPlanSubscriptionRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return &emptyReply{Success: true}, s.CancelPlanSubscription(c, &req)
		})
	})

	r.POST("/posts/purchase", func(ctx http.Context) error {
		var req service.PurchasePostRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.PurchasePost(c, &req)
		})
	})

	r.GET("/ledger/balance", func(ctx http.Context) error {
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.GetBalance(c)
		})
	})

	r.GET("/ledger/entries", func(ctx http.Context) error {
		query := ctx.Query()
		page, _ := strconv.Atoi(query.Get("page"))
		pageSize, _ := strconv.Atoi(query.Get("page_size"))
		stream := query.Get("stream")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.ListLedgerEntries(c, stream, page, pageSize)
		})
	})

	// 管理端接口
	r.POST("/admin/subscriptions/suspend", func(ctx http.Context) error {
		var req service.SuspendSubscriptionRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return &emptyReply{Success: true}, s.SuspendSubscription(c, &req)
		})
	})

	r.POST("/admin/subscriptions/resume", func(ctx http.Context) error {
		var req service.SuspendSubscriptionRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return &emptyReply{Success: true}, s.ResumeSubscription(c, &req)
		})
	})

	r.POST("/admin/plans", func(ctx http.Context) error {
		var req service.CreatePlanRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.CreatePlan(c, &req)
		})
	})

	r.GET("/admin/ledger/audit", func(ctx http.Context) error {
		query := ctx.Query()
		ownerType := query.Get("owner_type")
		ownerID, err := strconv.ParseUint(query.Get("owner_id"), 10, 64)
		if err != nil {
			return kerrors.BadRequest("INVALID_ARGUMENT", "invalid owner_id")
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.AuditBalance(c, ownerType, ownerID)
		})
	})

	r.POST("/admin/creators/reconcile", func(ctx http.Context) error {
		var req service.ReconcileCreatorRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.ReconcileCreatorRevenue(c, &req)
		})
	})
}

func registerCallbackRoutes(srv *http.Server, s *service.CallbackService) {
	r := srv.Route("/v1")

	// 网关异步通知。应答体是网关约定的裸字符串, 不走统一编码。
	// 请求体先整体读出, 原文随支付单存档
	r.POST("/payments/notify", func(ctx http.Context) error {
		req := ctx.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			ctx.Response().WriteHeader(stdhttp.StatusBadRequest)
			_, _ = ctx.Response().Write([]byte("FAIL"))
			return nil
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			ctx.Response().WriteHeader(stdhttp.StatusBadRequest)
			_, _ = ctx.Response().Write([]byte("FAIL"))
			return nil
		}
		params := make(map[string]string, len(form))
		for k, v := range form {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if err := s.Notify(req.Context(), params, body); err != nil {
			ctx.Response().WriteHeader(stdhttp.StatusBadRequest)
			_, _ = ctx.Response().Write([]byte("FAIL"))
			return nil
		}
		_, _ = ctx.Response().Write([]byte("SUCCESS"))
		return nil
	})

	// 支付完成同步跳转, 只读
	r.GET("/payments/return", func(ctx http.Context) error {
		query := ctx.Query()
		params := make(map[string]string, len(query))
		for k, v := range query {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return s.Return(c, params)
		})
	})
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	if code >= 140000 && code < 150000 {
		return stdhttp.StatusBadRequest
	}
	return stdhttp.StatusInternalServerError
}
