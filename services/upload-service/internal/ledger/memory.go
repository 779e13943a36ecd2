package ledger

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// MemoryLedger 进程内台账，单实例或未启用 redis 时使用
type MemoryLedger struct {
	mu    sync.Mutex
	store *cache.Cache
	now   func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		store: cache.New(ttl, ttl/2),
		now:   time.Now,
	}
}

func (l *MemoryLedger) Record(_ context.Context, key string, chunk, chunks int) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var current *Session
	if v, ok := l.store.Get(key); ok {
		current = v.(*Session)
	}
	session := apply(current, key, chunk, chunks, l.now())
	l.store.Set(key, session, cache.DefaultExpiration)
	return session.clone(), nil
}

func (l *MemoryLedger) Get(_ context.Context, key string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.store.Get(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*Session).clone(), nil
}

func (l *MemoryLedger) Missing(ctx context.Context, key string, chunks int) ([]int, error) {
	session, err := l.Get(ctx, key)
	if err != nil {
		session = nil
	}
	return session.Missing(chunks), nil
}

func (l *MemoryLedger) Clear(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Delete(key)
	return nil
}
