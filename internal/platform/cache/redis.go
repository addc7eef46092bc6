package cache

import (
	"context"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/coachpay/pkg/config"
)

// NewRedis builds the shared redis client. Connection errors surface on first use.
func NewRedis(l *zap.SugaredLogger, cfg *cfgpkg.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	l.Infow("redis client configured", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

var Module = fx.Options(
	fx.Provide(NewRedis, NewRedsync),
	fx.Invoke(registerRedisClose),
)

func registerRedisClose(lc fx.Lifecycle, l *zap.SugaredLogger, rdb *redis.Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return rdb.Close()
		},
	})
}
