package file

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

func RegisterRoutes(router *gin.RouterGroup, repo Repository, fs afero.Fs) {
	handler := NewHandler(repo, fs)

	fileGroup := router.Group("/files")
	{
		// 在线预览文件
		fileGroup.GET("/:id", handler.GetFile)

		// 强制下载文件
		fileGroup.GET("/:id/download", handler.DownloadFile)

		// 获取文件元数据（不返回文件内容）
		fileGroup.GET("/:id/info", handler.GetFileInfo)
	}
}
