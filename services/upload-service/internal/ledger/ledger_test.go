package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terminal-terrace/upload-service/internal/testutils"
)

func TestApply(t *testing.T) {
	now := time.Now()

	s := apply(nil, "chunked:a", 1, 3, now)
	assert.Equal(t, []bool{false, true, false}, s.UploadedChunks)
	assert.Equal(t, []int{0, 2}, s.Missing(3))

	s = apply(s, "chunked:a", 2, 3, now)
	assert.Equal(t, 2, s.Received())

	// chunk 0 重新开始
	s = apply(s, "chunked:a", 0, 3, now)
	assert.Equal(t, []bool{true, false, false}, s.UploadedChunks)

	// 总数变化时旧记录作废
	s = apply(s, "chunked:a", 1, 4, now)
	assert.Equal(t, []bool{false, true, false, false}, s.UploadedChunks)

	// 越界不记录
	s = apply(s, "chunked:a", 9, 4, now)
	assert.Equal(t, 1, s.Received())
}

func TestSession_MissingNil(t *testing.T) {
	var s *Session
	assert.Equal(t, []int{0, 1, 2}, s.Missing(3))
	assert.Empty(t, s.Missing(0))
}

func runLedgerSuite(t *testing.T, l Ledger) {
	ctx := context.Background()
	key := "chunked:report.pdf"

	_, err := l.Get(ctx, key)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	missing, err := l.Missing(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, missing)

	for _, chunk := range []int{0, 2} {
		_, err := l.Record(ctx, key, chunk, 3)
		require.NoError(t, err)
	}

	session, err := l.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, session.Key)
	assert.Equal(t, 3, session.TotalChunks)
	assert.Equal(t, 2, session.Received())

	missing, err = l.Missing(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, missing)

	session, err = l.Record(ctx, key, 1, 3)
	require.NoError(t, err)
	assert.Empty(t, session.Missing(3))

	require.NoError(t, l.Clear(ctx, key))
	_, err = l.Get(ctx, key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryLedger(t *testing.T) {
	runLedgerSuite(t, NewMemoryLedger(time.Minute))
}

func TestMemoryLedger_ReturnsCopies(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	ctx := context.Background()

	session, err := l.Record(ctx, "k", 0, 2)
	require.NoError(t, err)
	session.UploadedChunks[1] = true

	missing, err := l.Missing(ctx, "k", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, missing)
}

func TestMemoryLedger_Expiry(t *testing.T) {
	l := NewMemoryLedger(20 * time.Millisecond)
	ctx := context.Background()

	_, err := l.Record(ctx, "k", 0, 2)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = l.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisLedger(t *testing.T) {
	rc := testutils.SetupTestRedis(t)
	l := NewRedisLedger(rc.Client, time.Minute)

	runLedgerSuite(t, l)

	_, err := l.Record(context.Background(), "chunked:ttl.bin", 0, 2)
	require.NoError(t, err)
	ttl, err := rc.TTL(context.Background(), "upload:chunked:ttl.bin").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
