package plupload

import (
	"io"
	"mime/multipart"
)

// UploadedFile 已由 web 框架接收完毕的上传文件
// Open 至少要能成功读取一次
type UploadedFile interface {
	IsValid() bool
	Open() (io.ReadCloser, error)
}

// MultipartFile 把 multipart 表单中的文件字段适配成 UploadedFile
type MultipartFile struct {
	Header *multipart.FileHeader
	// Err 取表单文件时的错误，非空即视为无效上传
	Err error
}

// NewMultipartFile 直接接收 c.FormFile / r.FormFile 的返回值
func NewMultipartFile(header *multipart.FileHeader, err error) *MultipartFile {
	return &MultipartFile{Header: header, Err: err}
}

func (m *MultipartFile) IsValid() bool {
	return m != nil && m.Err == nil && m.Header != nil && m.Header.Size >= 0
}

func (m *MultipartFile) Open() (io.ReadCloser, error) {
	return m.Header.Open()
}
