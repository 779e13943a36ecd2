package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/file"
	"terminal-terrace/upload-service/internal/ledger"
	"terminal-terrace/upload-service/internal/lock"
	filemodel "terminal-terrace/upload-service/internal/model/file"
	"terminal-terrace/upload-service/internal/plupload"
)

var errWriteFailed = errors.New("写入分块失败")

// 嗅探 MIME 类型读取的文件头长度
const sniffLen = 3072

// Options 上传服务的行为开关
type Options struct {
	TargetDir    string
	StagedWrites bool
	// 完成时要求台账中所有分块都已收到
	VerifyChunks bool
	LockTimeout  time.Duration
}

type Service struct {
	opts   Options
	fs     afero.Fs
	locker lock.Locker
	ledger ledger.Ledger
	// 为 nil 时不登记文件
	repo file.Repository
	log  *zap.Logger
}

func NewService(opts Options, fs afero.Fs, locker lock.Locker, l ledger.Ledger, repo file.Repository, log *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if l == nil {
		l = ledger.NewMemoryLedger(ledger.DefaultTTL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	return &Service{opts: opts, fs: fs, locker: locker, ledger: l, repo: repo, log: log.Named("upload")}
}

// ProcessMultipart 处理 multipart 表单中的分块
func (s *Service) ProcessMultipart(ctx context.Context, req ChunkRequest, upload plupload.UploadedFile) (*ChunkResponse, error) {
	return s.process(ctx, req, func(f *plupload.File) error {
		return f.ProcessMultipartUpload(upload)
	})
}

// ProcessStream 处理直接作为请求体发送的分块
func (s *Service) ProcessStream(ctx context.Context, req ChunkRequest, body io.Reader) (*ChunkResponse, error) {
	return s.process(ctx, req, func(f *plupload.File) error {
		return f.ProcessStreamUpload(body)
	})
}

func (s *Service) newFile(chunk, chunks int, name string) (*plupload.File, error) {
	opts := []plupload.Option{plupload.WithFs(s.fs)}
	if s.opts.StagedWrites {
		opts = append(opts, plupload.WithStagedWrites())
	}
	return plupload.New(chunk, chunks, name, s.opts.TargetDir, opts...)
}

func (s *Service) process(ctx context.Context, req ChunkRequest, write func(*plupload.File) error) (*ChunkResponse, error) {
	f, err := s.newFile(req.Chunk, req.Chunks, req.Name)
	if err != nil {
		s.log.Warn("拒绝分块", zap.String("name", req.Name), zap.Error(err))
		return nil, toBusinessError(err)
	}
	logFor := func(key plupload.Key) *zap.Logger {
		return s.log.With(
			zap.String("key", key.String()),
			zap.Int("chunk", f.Chunk()),
			zap.Int("chunks", f.Chunks()),
			zap.Int("user_id", req.UserID),
		)
	}
	key := f.Key()
	log := logFor(key)

	// 单次上传的文件名唯一，不需要加锁
	if key.Chunked {
		lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
		unlock, err := s.locker.Lock(lockCtx, key.String())
		cancel()
		if err != nil {
			log.Warn("获取上传锁失败", zap.Error(err))
			return nil, toBusinessError(err)
		}
		defer unlock()
	}

	start := time.Now()
	if err := write(f); err != nil {
		if !isSentinel(err) {
			err = fmt.Errorf("%w: %w", errWriteFailed, err)
		}
		be := toBusinessError(err)
		log.Error("写入分块失败", zap.Int("code", int(be.Code)), zap.Error(err))
		return nil, be
	}

	// 单次上传在写入时才确定文件名，Key 以写入后的为准
	if !key.Chunked {
		key = f.Key()
		log = logFor(key)
	}

	resp := &ChunkResponse{
		Key:    key.String(),
		Name:   f.Filename(),
		Chunk:  f.Chunk(),
		Chunks: f.Chunks(),
	}

	if key.Chunked {
		session, err := s.ledger.Record(ctx, key.String(), f.Chunk(), f.Chunks())
		if err != nil {
			log.Warn("记录分块失败", zap.Error(err))
		} else {
			resp.Received = session.Received()
		}
	}

	complete, err := f.IsComplete()
	if err != nil {
		return nil, toBusinessError(err)
	}
	log.Debug("分块已写入", zap.Bool("complete", complete), zap.Duration("elapsed", time.Since(start)))
	if !complete {
		return resp, nil
	}

	if key.Chunked && s.opts.VerifyChunks {
		missing, err := s.ledger.Missing(ctx, key.String(), f.Chunks())
		if err != nil {
			log.Error("读取台账失败", zap.Error(err))
			return nil, toBusinessError(err)
		}
		if len(missing) > 0 {
			log.Warn("分块缺失", zap.Ints("missing", missing))
			return nil, response.NewBusinessError(
				response.WithErrorCode(response.UploadIncomplete),
				response.WithErrorMessage(fmt.Sprintf("分块缺失: %v", missing)),
				response.WithError(plupload.ErrIncompleteFile),
			)
		}
	}

	done, err := f.CompletedFile()
	if err != nil {
		log.Error("读取完成的文件失败", zap.Error(err))
		return nil, toBusinessError(err)
	}

	result, err := s.describe(done, req.Name)
	if err != nil {
		log.Error("分析完成的文件失败", zap.Error(err))
		return nil, toBusinessError(fmt.Errorf("%w: %w", errWriteFailed, err))
	}
	resp.Complete = true
	resp.File = result

	if s.repo != nil {
		if err := s.register(ctx, result, f.Chunks(), req.UserID, done.Path); err != nil {
			log.Error("登记文件失败", zap.Error(err))
			return nil, response.NewBusinessError(
				response.WithErrorCode(response.Fail),
				response.WithErrorMessage("写入数据库失败"),
				response.WithError(err),
			)
		}
	}

	if key.Chunked {
		if err := s.ledger.Clear(ctx, key.String()); err != nil {
			log.Warn("清理上传会话失败", zap.Error(err))
		}
	}

	log.Info("上传完成",
		zap.String("path", done.Path),
		zap.Int64("size", result.Size),
		zap.String("mime", result.MimeType),
		zap.String("sha256", result.Hash),
		zap.Uint("file_id", result.ID),
	)
	return resp, nil
}

// describe 一次读取完成的文件，同时嗅探 MIME 类型和计算 SHA-256
func (s *Service) describe(done *plupload.CompletedFile, clientName string) (*FileResult, error) {
	r, err := done.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	hasher := sha256.New()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	head = head[:n]
	hasher.Write(head)
	if _, err := io.Copy(hasher, r); err != nil {
		return nil, err
	}

	mime := mimetype.Detect(head)
	name := plupload.SanitizeFilename(filepath.Base(clientName))
	if name == "" || name == "." {
		name = done.Name
	}

	ext := filepath.Ext(name)
	if ext == "" {
		ext = mime.Extension()
	}

	return &FileResult{
		Name:       name,
		StoredName: done.Name,
		Extension:  ext,
		Size:       done.Size,
		MimeType:   mime.String(),
		Category:   inferCategory(mime.String()),
		Hash:       hex.EncodeToString(hasher.Sum(nil)),
		ModTime:    done.ModTime,
	}, nil
}

func (s *Service) register(ctx context.Context, result *FileResult, chunks, userID int, path string) error {
	rec := filemodel.File{
		FileName:   result.Name,
		StoredName: result.StoredName,
		FileHash:   result.Hash,
		FilePath:   path,
		FileSize:   result.Size,
		MimeType:   result.MimeType,
		Category:   result.Category,
		Extension:  result.Extension,
		Chunks:     chunks,
		UploadedBy: uint(max(userID, 0)),
	}
	if err := s.repo.Create(ctx, &rec); err != nil {
		return err
	}
	result.ID = rec.ID
	result.URL = file.URL(rec.ID)
	return nil
}

// Status 查询分块上传的接收情况
func (s *Service) Status(ctx context.Context, q StatusQuery) (*StatusResponse, error) {
	f, err := s.newFile(0, q.Chunks, q.Name)
	if err != nil {
		return nil, toBusinessError(err)
	}
	key := f.Key()

	var received int
	session, err := s.ledger.Get(ctx, key.String())
	switch {
	case err == nil:
		received = session.Received()
	case errors.Is(err, ledger.ErrSessionNotFound):
		session = nil
	default:
		return nil, toBusinessError(err)
	}

	resp := &StatusResponse{
		Key:      key.String(),
		Name:     f.Filename(),
		Chunks:   f.Chunks(),
		Received: received,
		Missing:  session.Missing(f.Chunks()),
	}
	if info, err := s.fs.Stat(f.FilePath()); err == nil && !info.IsDir() {
		resp.Exists = true
		resp.Size = info.Size()
	}
	return resp, nil
}

func isSentinel(err error) bool {
	for _, target := range []error{
		plupload.ErrAlreadyProcessed,
		plupload.ErrInvalidUpload,
		plupload.ErrDirectoryCreateFailed,
		plupload.ErrDirectoryNotWritable,
		plupload.ErrOutputOpenFailed,
		plupload.ErrInputOpenFailed,
		plupload.ErrInvalidFilename,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func inferCategory(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	default:
		return "document"
	}
}
