// Package ledger 记录每个分块上传已经收到哪些分块
//
// 拼接本身只看分块位置判断是否完成，台账用于查询进度和可选的完整性校验。
// 收到 chunk 0 时会重置会话，与目标文件被截断保持一致。
package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("上传会话不存在或已过期")

const DefaultTTL = 2 * time.Hour

// Session 一个分块上传的接收情况
type Session struct {
	Key            string    `json:"key"`
	TotalChunks    int       `json:"totalChunks"`
	UploadedChunks []bool    `json:"uploadedChunks"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Ledger interface {
	// Record 记录收到的分块，返回更新后的会话
	Record(ctx context.Context, key string, chunk, chunks int) (*Session, error)
	Get(ctx context.Context, key string) (*Session, error)
	// Missing 返回 [0, chunks) 中还没收到的分块序号
	Missing(ctx context.Context, key string, chunks int) ([]int, error)
	Clear(ctx context.Context, key string) error
}

func newSession(key string, chunks int) *Session {
	return &Session{
		Key:            key,
		TotalChunks:    chunks,
		UploadedChunks: make([]bool, chunks),
	}
}

// apply 把一次接收合并进会话，s 可以为 nil
// 总数变化时旧记录作废；越界的序号不记录
func apply(s *Session, key string, chunk, chunks int, now time.Time) *Session {
	if s == nil || chunk == 0 || s.TotalChunks != chunks || len(s.UploadedChunks) != chunks {
		s = newSession(key, chunks)
	}
	if chunk >= 0 && chunk < chunks {
		s.UploadedChunks[chunk] = true
	}
	s.UpdatedAt = now
	return s
}

// Received 已收到的分块数
func (s *Session) Received() int {
	n := 0
	for _, ok := range s.UploadedChunks {
		if ok {
			n++
		}
	}
	return n
}

// Missing 返回 [0, chunks) 中还没收到的分块序号
func (s *Session) Missing(chunks int) []int {
	missing := []int{}
	for i := 0; i < chunks; i++ {
		if s == nil || s.TotalChunks != chunks || i >= len(s.UploadedChunks) || !s.UploadedChunks[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func (s *Session) clone() *Session {
	c := *s
	c.UploadedChunks = append([]bool(nil), s.UploadedChunks...)
	return &c
}
