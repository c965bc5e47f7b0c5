package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/creator-billing-service/internal/conf"

	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}
	if err := bc.Validate(); err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 订阅到期扫描 - 每小时整点执行
	_, err = cronScheduler.AddFunc("0 0 * * * *", func() {
		log.Println("[CRON] Starting subscription expiration sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		expired, skipped, err := app.subscriptionUsecase.ExpireDueSubscriptions(ctx)
		if err != nil {
			log.Printf("[CRON] Error sweeping expired subscriptions: %v", err)
		} else {
			log.Printf("[CRON] Expiration sweep done: expired=%d, skipped=%d", expired, skipped)
		}
	})
	if err != nil {
		log.Printf("Failed to add expiration sweep job: %v", err)
	}

	// 2. 过期待支付订单关闭 - 每天凌晨 3:30 执行
	_, err = cronScheduler.AddFunc("0 30 3 * * *", func() {
		log.Println("[CRON] Starting stale order cleanup...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		closed, skipped, err := app.paymentUsecase.FailStaleOrders(ctx)
		if err != nil {
			log.Printf("[CRON] Error closing stale orders: %v", err)
		} else {
			log.Printf("[CRON] Stale order cleanup done: closed=%d, skipped=%d", closed, skipped)
		}
	})
	if err != nil {
		log.Printf("Failed to add stale order cleanup job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Println("Scheduled jobs:")
	log.Println("  - Expiration sweep:    Every hour on the hour")
	log.Println("  - Stale order cleanup: Every day at 03:30")
	log.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
