package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "upload:"
	maxTxRetries   = 5
)

// RedisLedger 会话以 JSON 保存在 upload:<key> 下，每次写入刷新过期时间
type RedisLedger struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisLedger(client redis.UniversalClient, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl, now: time.Now}
}

func (l *RedisLedger) Record(ctx context.Context, key string, chunk, chunks int) (*Session, error) {
	redisKey := redisKeyPrefix + key
	var session *Session

	// 乐观事务：没加锁的并发写入会让 WATCH 失败并重试
	txf := func(tx *redis.Tx) error {
		current, err := l.load(ctx, tx, redisKey)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		session = apply(current, key, chunk, chunks, l.now())

		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, data, l.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := l.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("更新上传会话失败: %w", err)
		}
	}
	return nil, fmt.Errorf("更新上传会话失败: %w", redis.TxFailedErr)
}

func (l *RedisLedger) Get(ctx context.Context, key string) (*Session, error) {
	return l.load(ctx, l.client, redisKeyPrefix+key)
}

func (l *RedisLedger) Missing(ctx context.Context, key string, chunks int) ([]int, error) {
	session, err := l.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return session.Missing(chunks), nil
}

func (l *RedisLedger) Clear(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("删除上传会话失败: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (l *RedisLedger) load(ctx context.Context, c getter, redisKey string) (*Session, error) {
	data, err := c.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取上传会话失败: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("会话解析失败: %w", err)
	}
	return &session, nil
}
