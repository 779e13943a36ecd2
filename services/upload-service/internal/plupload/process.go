package plupload

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// 每次读写的缓冲大小
const copyBufferSize = 4096

const (
	truncateFlag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	appendFlag   = os.O_CREATE | os.O_WRONLY | os.O_APPEND
)

type sourceOpener func() (io.ReadCloser, error)

// ProcessMultipartUpload 从已接收的 multipart 文件写入当前分块
func (f *File) ProcessMultipartUpload(upload UploadedFile) error {
	if err := f.prepareForProcess(); err != nil {
		return err
	}

	if upload == nil || !upload.IsValid() {
		return ErrInvalidUpload
	}

	if err := f.writeFromBoundedSource(upload.Open); err != nil {
		return err
	}
	f.processed = true
	return nil
}

// ProcessStreamUpload 从原始请求体写入当前分块，用于客户端直接把分块作为请求体发送的情况
func (f *File) ProcessStreamUpload(body io.Reader) error {
	if err := f.prepareForProcess(); err != nil {
		return err
	}

	open := func() (io.ReadCloser, error) {
		if body == nil {
			return nil, errors.New("request body is nil")
		}
		return io.NopCloser(body), nil
	}

	if err := f.writeFromBoundedSource(open); err != nil {
		return err
	}
	f.processed = true
	return nil
}

func (f *File) outputFlag() int {
	if f.chunk == 0 {
		return truncateFlag
	}
	return appendFlag
}

// writeFromBoundedSource 把数据源完整复制到目标文件
// 失败时不回滚：非暂存模式下目标文件可能已被截断或写入了一部分
func (f *File) writeFromBoundedSource(open sourceOpener) (err error) {
	if f.staged {
		return f.writeStaged(open)
	}

	path := f.FilePath()
	out, err := f.fs.OpenFile(path, f.outputFlag(), 0o666)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputOpenFailed, path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return copyFrom(out, open, f.chunk, path)
}

func (f *File) writeStaged(open sourceOpener) (err error) {
	path := f.FilePath()

	tmp, err := afero.TempFile(f.fs, f.targetDirectory, "."+f.filename+".part-*")
	if err != nil {
		return fmt.Errorf("%w: staging file for %s: %w", ErrOutputOpenFailed, path, err)
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = f.fs.Remove(tmpName)
		}
	}()

	if err := copyFrom(tmp, open, f.chunk, tmpName); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if f.chunk == 0 {
		_ = f.fs.Chmod(tmpName, 0o644)
		if err := f.fs.Rename(tmpName, path); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrOutputOpenFailed, path, err)
		}
		renamed = true
		return nil
	}

	out, err := f.fs.OpenFile(path, appendFlag, 0o666)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputOpenFailed, path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return copyFrom(out, func() (io.ReadCloser, error) { return f.fs.Open(tmpName) }, f.chunk, path)
}

func copyFrom(dst io.Writer, open sourceOpener, chunk int, path string) error {
	in, err := open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInputOpenFailed, err)
	}
	defer in.Close()

	// 包一层屏蔽 ReaderFrom/WriterTo，始终按固定缓冲顺序读写
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{in}, buf); err != nil {
		return fmt.Errorf("write chunk %d to %s: %w", chunk, path, err)
	}
	return nil
}
