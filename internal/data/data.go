package data

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"xinyuan_tech/creator-billing-service/internal/biz"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewDB,
	NewRedis,
	NewRedsync,
	NewOrderRepo,
	NewPaymentRepo,
	NewLedgerRepo,
	NewPlanRepo,
	NewCreatorSubscriptionRepo,
	NewPlanSubscriptionRepo,
	NewCreatorRepo,
	NewPostPurchaseRepo,
	NewGatewayClient,
	wire.Bind(new(biz.Transaction), new(*Data)),
)

// Data .
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

type contextTxKey struct{}

// Exec 执行事务。事务句柄放进 context, 仓库方法通过 DB(ctx) 取用,
// 同一事务内的所有写要么全部提交要么全部回滚
func (d *Data) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB 返回当前应使用的数据库句柄: 事务内返回事务句柄, 否则返回连接池
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// NewData .
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}
	return &Data{db: db, rdb: rdb}, cleanup, nil
}

// NewDB .
func NewDB(c *conf.Bootstrap) *gorm.DB {
	source := ""
	if c != nil && c.Data != nil {
		source = c.Data.Database.Source
	}
	if source == "" {
		panic("database source is required")
	}

	db, err := gorm.Open(mysql.Open(source), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}

	dbConf := c.Data.Database
	if dbConf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConf.MaxIdleConns)
	}
	if dbConf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConf.MaxOpenConns)
	}
	if dbConf.ConnMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(dbConf.ConnMaxLifetime); err == nil {
			sqlDB.SetConnMaxLifetime(lifetime)
		}
	}
	return db
}

// NewRedis .
func NewRedis(c *conf.Bootstrap) *redis.Client {
	var readTimeout, writeTimeout time.Duration
	var addr, password string
	var db int32

	if c != nil && c.Data != nil {
		redisConf := c.Data.Redis
		if redisConf.ReadTimeout != "" {
			readTimeout, _ = time.ParseDuration(redisConf.ReadTimeout)
		}
		if redisConf.WriteTimeout != "" {
			writeTimeout, _ = time.ParseDuration(redisConf.WriteTimeout)
		}
		addr = redisConf.Addr
		password = redisConf.Password
		db = redisConf.Db
	}

	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           int(db),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
	return rdb
}

// NewRedsync 创建 redsync 实例
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	pool := goredis.NewPool(rdb)
	return redsync.New(pool)
}
