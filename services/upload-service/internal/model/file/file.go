// Package file 文件相关模型
package file

import (
	"time"
)

// File 上传完成的文件（只存元数据，不存文件内容）
type File struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// 客户端提交的原始文件名
	FileName string `gorm:"type:varchar(255);not null" json:"fileName"`
	// 清洗后落盘的文件名，单次上传为生成的唯一文件名
	StoredName string `gorm:"type:varchar(255);not null" json:"storedName"`
	// SHA256 哈希值（64位十六进制字符串）
	FileHash string `gorm:"type:varchar(64);index;not null" json:"fileHash"`
	// 文件在服务器上的存储路径
	FilePath  string `gorm:"type:varchar(500);not null;uniqueIndex" json:"filePath"`
	FileSize  int64  `gorm:"not null" json:"fileSize"`
	MimeType  string `gorm:"type:varchar(100);not null" json:"mimeType"`
	Category  string `gorm:"type:varchar(50);not null;index" json:"category"` // image/video/audio/document
	Extension string `gorm:"type:varchar(20)" json:"extension"`
	Chunks    int    `gorm:"not null;default:0" json:"chunks"`
	// 上传者 ID，未鉴权时为 0
	UploadedBy uint `gorm:"not null;index" json:"uploadedBy"`
	// 下载次数统计
	DownloadCount uint      `gorm:"default:0" json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (File) TableName() string {
	return "files"
}
