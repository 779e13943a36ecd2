package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	applog "terminal-terrace/logger"
)

const (
	DefaultRedisPrefix = "upload:lock:"
	DefaultExpiry      = time.Minute
	defaultRetryDelay  = 100 * time.Millisecond
)

// RedisLocker 基于 redsync 的分布式锁，多实例部署时使用
type RedisLocker struct {
	rs         *redsync.Redsync
	prefix     string
	expiry     time.Duration
	retryDelay time.Duration
}

type RedisOption func(*RedisLocker)

// WithExpiry 锁的过期时间，持有者崩溃后最多阻塞这么久
func WithExpiry(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.expiry = d
		}
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

func NewRedisLocker(client goredislib.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     DefaultRedisPrefix,
		expiry:     DefaultExpiry,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock 一直重试到 ctx 结束，调用方需要给 ctx 设置超时
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(l.prefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries(ctx)),
		redsync.WithRetryDelay(l.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if ctx.Err() != nil || errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, err)
		}
		return nil, fmt.Errorf("获取上传锁 %s 失败: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if ok, err := mutex.UnlockContext(ctx); err != nil || !ok {
				applog.L().Warn("释放上传锁失败",
					zap.String("key", key),
					zap.Bool("released", ok),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// tries 让重试次数覆盖 ctx 剩余的等待时间
func (l *RedisLocker) tries(ctx context.Context) int {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 32
	}
	n := int(time.Until(deadline)/l.retryDelay) + 1
	if n < 1 {
		return 1
	}
	return n
}
