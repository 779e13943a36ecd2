// Package lock 按上传 Key 串行化分块写入
//
// 同一个文件的分块必须按顺序追加，客户端重试或并发发送时由这里的锁保证
// 同一时刻只有一个请求在写；不同文件之间互不影响。
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockTimeout 在等待期限内没有拿到锁
var ErrLockTimeout = errors.New("等待上传锁超时")

// Locker 返回的 unlock 可以重复调用
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// NopLocker 不加锁
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LocalLocker 进程内按 key 加锁，只适用于单实例部署
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

// 没有持有者也没有等待者时删除条目，避免 map 无限增长
func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
