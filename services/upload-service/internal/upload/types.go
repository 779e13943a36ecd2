package upload

import "time"

// ChunkRequest 一次分块请求的参数
type ChunkRequest struct {
	Chunk  int
	Chunks int
	// 客户端文件名，未清洗
	Name string
	// 上传者，未鉴权时为 0
	UserID int
}

// ChunkResponse 分块处理结果
type ChunkResponse struct {
	Key      string      `json:"key"`
	Name     string      `json:"name"`
	Chunk    int         `json:"chunk"`
	Chunks   int         `json:"chunks"`
	Complete bool        `json:"complete"`
	Received int         `json:"received,omitempty"`
	File     *FileResult `json:"file,omitempty"`
}

// FileResult 上传完成的文件
type FileResult struct {
	ID         uint      `json:"id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Name       string    `json:"name"`
	StoredName string    `json:"storedName"`
	Extension  string    `json:"extension"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	Category   string    `json:"category"`
	Hash       string    `json:"hash"`
	ModTime    time.Time `json:"modTime"`
}

// StatusQuery 查询分块上传进度
type StatusQuery struct {
	Name   string `form:"name" binding:"required,max=255"`
	Chunks int    `form:"chunks" binding:"required,min=2"`
}

// StatusResponse 分块上传进度
type StatusResponse struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Chunks   int    `json:"chunks"`
	Received int    `json:"received"`
	Missing  []int  `json:"missing"`
	// 目标目录中拼接中的文件
	Exists bool  `json:"exists"`
	Size   int64 `json:"size"`
}
