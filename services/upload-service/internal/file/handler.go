package file

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	applog "terminal-terrace/logger"
	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/dto"
	filemodel "terminal-terrace/upload-service/internal/model/file"
)

type Handler struct {
	repo Repository
	fs   afero.Fs
}

func NewHandler(repo Repository, fs afero.Fs) *Handler {
	return &Handler{repo: repo, fs: fs}
}

// FileInfo 文件元数据（不含存储路径）
type FileInfo struct {
	ID            uint      `json:"id"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	MimeType      string    `json:"mimeType"`
	Category      string    `json:"category"`
	FileHash      string    `json:"fileHash"`
	FileUrl       string    `json:"fileUrl"`
	DownloadCount uint      `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// URL 文件的在线预览地址
func URL(id uint) string {
	return "/api/v1/files/" + strconv.FormatUint(uint64(id), 10)
}

// GetFile 获取文件（在线预览）
// @Summary 在线预览文件
// @Tags files
// @Param id path int true "文件 ID"
// @Success 200 {file} binary
// @Router /files/{id} [get]
func (h *Handler) GetFile(c *gin.Context) {
	h.serve(c, "inline", false)
}

// DownloadFile 下载文件（强制下载）
// @Summary 下载文件
// @Tags files
// @Param id path int true "文件 ID"
// @Success 200 {file} binary
// @Router /files/{id}/download [get]
func (h *Handler) DownloadFile(c *gin.Context) {
	h.serve(c, "attachment", true)
}

// GetFileInfo 获取文件信息（不返回文件内容）
// @Summary 文件元数据
// @Tags files
// @Produce json
// @Param id path int true "文件 ID"
// @Success 200 {object} response.Response{data=FileInfo}
// @Router /files/{id}/info [get]
func (h *Handler) GetFileInfo(c *gin.Context) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}

	dto.SuccessResponse(c, FileInfo{
		ID:            record.ID,
		FileName:      record.FileName,
		FileSize:      record.FileSize,
		MimeType:      record.MimeType,
		Category:      record.Category,
		FileHash:      record.FileHash,
		FileUrl:       URL(record.ID),
		DownloadCount: record.DownloadCount,
		CreatedAt:     record.CreatedAt,
	})
}

func (h *Handler) serve(c *gin.Context, disposition string, countDownload bool) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}

	// 打开文件系统中的实际文件
	f, err := h.fs.Open(record.FilePath)
	if err != nil {
		applog.L().Error("文件读取失败", zap.Uint("file_id", record.ID), zap.String("path", record.FilePath), zap.Error(err))
		dto.StatusErrorResponse(c, response.NewBusinessError(
			response.WithErrorCode(response.UploadIOError),
			response.WithErrorMessage("文件读取失败"),
		))
		return
	}
	defer f.Close()

	contentType := record.MimeType
	if disposition == "attachment" {
		contentType = "application/octet-stream"
	}

	if countDownload {
		// 异步增加下载计数，不影响响应速度
		go func(id uint) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.IncrementDownloads(ctx, id); err != nil {
				applog.L().Warn("更新下载次数失败", zap.Uint("file_id", id), zap.Error(err))
			}
		}(record.ID)
	}

	// 流式返回文件内容，文件不会改变，可以长期缓存
	c.DataFromReader(http.StatusOK, record.FileSize, contentType, f, map[string]string{
		"Content-Disposition": disposition + `; filename="` + record.FileName + `"`,
		"Cache-Control":       "public, max-age=31536000",
		"ETag":                `"` + record.FileHash + `"`,
	})
}

func (h *Handler) lookup(c *gin.Context) (*filemodel.File, bool) {
	fileID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || fileID == 0 {
		dto.StatusErrorResponse(c, response.NewBusinessError(
			response.WithErrorCode(response.InvalidParameter),
			response.WithErrorMessage("无效的文件 ID"),
		))
		return nil, false
	}

	record, err := h.repo.FindByID(c.Request.Context(), uint(fileID))
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			dto.StatusErrorResponse(c, response.NewBusinessError(
				response.WithErrorCode(response.NotFound),
				response.WithErrorMessage("文件不存在"),
			))
		} else {
			applog.L().Error("查询文件失败", zap.Uint64("file_id", fileID), zap.Error(err))
			dto.StatusErrorResponse(c, response.NewBusinessError(
				response.WithErrorCode(response.Fail),
				response.WithErrorMessage("查询文件失败"),
			))
		}
		return nil, false
	}
	return record, true
}
