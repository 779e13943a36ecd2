// Package plupload 把按顺序分块上传的文件重新拼接到服务器磁盘上
//
// 每个请求携带一个分块：0 起的分块序号 chunk、分块总数 chunks 和客户端文件名。
// chunk == 0 时截断（创建）目标文件，之后的分块追加写入；是否上传完成只由
// 分块位置决定。File 只负责单个请求，不保存跨请求状态，连续性完全由磁盘上
// 拼接中的文件和客户端每次重复发送的文件名承担。
package plupload

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Key 上传的显式标识
// 单次上传用生成的文件名，分块上传用清洗后的客户端文件名；锁、台账和登记都按 Key 区分
type Key struct {
	Chunked bool
	Name    string
}

func (k Key) String() string {
	if k.Chunked {
		return "chunked:" + k.Name
	}
	return "single:" + k.Name
}

// File 一次分块写入请求
type File struct {
	chunk           int
	chunks          int
	filename        string
	targetDirectory string
	processed       bool

	fs       afero.Fs
	staged   bool
	generate func() string
}

type Option func(*File)

// WithFs 指定文件系统，默认使用操作系统文件系统
func WithFs(fs afero.Fs) Option {
	return func(f *File) {
		f.fs = fs
	}
}

// WithStagedWrites 分块先完整写入同目录下的临时文件，成功后再落到目标文件
// 读取分块失败时目标文件保持不变
func WithStagedWrites() Option {
	return func(f *File) {
		f.staged = true
	}
}

// WithNameGenerator 替换单次上传的文件名生成器
func WithNameGenerator(generate func() string) Option {
	return func(f *File) {
		f.generate = generate
	}
}

// New 创建一次分块写入请求
// chunks < 2 表示未分块的单次上传，此时忽略客户端文件名，使用生成的唯一文件名
func New(chunk, chunks int, filename, targetDirectory string, opts ...Option) (*File, error) {
	f := &File{
		chunk:           nonNegative(chunk),
		chunks:          nonNegative(chunks),
		targetDirectory: targetDirectory,
		fs:              afero.NewOsFs(),
		generate:        GenerateFilename,
	}
	for _, opt := range opts {
		opt(f)
	}

	if !f.IsChunked() {
		filename = f.generate()
	}
	if err := f.setFilename(filename); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Chunk() int {
	return f.chunk
}

func (f *File) Chunks() int {
	return f.chunks
}

// IsChunked 分块总数不少于 2 才算真正的分块上传
func (f *File) IsChunked() bool {
	return f.chunks >= 2
}

func (f *File) Filename() string {
	return f.filename
}

func (f *File) TargetDirectory() string {
	return f.targetDirectory
}

// FilePath 拼接中的目标文件路径
func (f *File) FilePath() string {
	return filepath.Join(f.targetDirectory, f.filename)
}

func (f *File) Key() Key {
	return Key{Chunked: f.IsChunked(), Name: f.filename}
}

func (f *File) IsProcessed() bool {
	return f.processed
}

// IsComplete 只看分块位置：未分块或最后一个分块即为完成，不检查之前的分块是否真的写入过
func (f *File) IsComplete() (bool, error) {
	if !f.processed {
		return false, ErrNotProcessed
	}
	if !f.IsChunked() {
		return true, nil
	}
	return f.chunk+1 == f.chunks, nil
}

// CompletedFile 上传完成后的文件
type CompletedFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time

	fs afero.Fs
}

// Open 以只读方式打开完成的文件
func (c *CompletedFile) Open() (afero.File, error) {
	return c.fs.Open(c.Path)
}

// CompletedFile 返回拼接完成的文件，未完成时返回 ErrIncompleteFile
func (f *File) CompletedFile() (*CompletedFile, error) {
	complete, err := f.IsComplete()
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("%w: chunk %d of %d", ErrIncompleteFile, f.chunk+1, f.chunks)
	}

	info, err := f.fs.Stat(f.FilePath())
	if err != nil {
		return nil, fmt.Errorf("stat completed file %s: %w", f.FilePath(), err)
	}

	return &CompletedFile{
		Path:    f.FilePath(),
		Name:    f.filename,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		fs:      f.fs,
	}, nil
}

func (f *File) setFilename(filename string) error {
	sanitized := SanitizeFilename(filename)
	// "." 和 ".." 拼接后会指向目标目录本身或上级目录
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	f.filename = sanitized
	return nil
}

// prepareForProcess 每次处理前调用
func (f *File) prepareForProcess() error {
	if f.processed {
		return ErrAlreadyProcessed
	}

	// 每次处理都重新生成，保证同一单次上传的不同请求对象不会撞名
	if !f.IsChunked() {
		if err := f.setFilename(f.generate()); err != nil {
			return err
		}
	}

	return f.ensureTargetDirectory()
}

func (f *File) ensureTargetDirectory() error {
	dir := f.targetDirectory
	if dir == "" {
		return fmt.Errorf("%w: empty path", ErrDirectoryCreateFailed)
	}

	info, err := f.fs.Stat(dir)
	if err != nil {
		if mkErr := f.fs.MkdirAll(dir, 0o777); mkErr != nil {
			return fmt.Errorf("%w: %q: %w", ErrDirectoryCreateFailed, dir, mkErr)
		}
		return nil
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %q is not a directory", ErrDirectoryCreateFailed, dir)
	}
	if !f.writable(dir, info) {
		return fmt.Errorf("%w: %q", ErrDirectoryNotWritable, dir)
	}
	return nil
}

// writable 真实文件系统按进程身份检查（root 可以写 0555 的目录），其他文件系统只看权限位
func (f *File) writable(dir string, info os.FileInfo) bool {
	if _, ok := f.fs.(*afero.OsFs); ok {
		return canWrite(dir)
	}
	return info.Mode().Perm()&0o222 != 0
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
