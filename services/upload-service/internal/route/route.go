package route

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"terminal-terrace/upload-service/internal/file"
	"terminal-terrace/upload-service/internal/middleware"
	"terminal-terrace/upload-service/internal/upload"
)

// Dependencies 路由需要的服务
type Dependencies struct {
	Upload        *upload.Service
	UploadOptions upload.HandlerOptions
	// 为 nil 时不注册文件下载路由
	Files       file.Repository
	Fs          afero.Fs
	JWTSecret   string
	RequireAuth bool
	FrontendURL string
	Logger      *zap.Logger
}

func initRoute(r *gin.Engine, deps Dependencies) {
	// Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		var mws []gin.HandlerFunc
		switch {
		case deps.RequireAuth:
			mws = append(mws, middleware.JWTAuth(deps.JWTSecret))
		case deps.JWTSecret != "":
			mws = append(mws, middleware.OptionalJWTAuth(deps.JWTSecret))
		}
		upload.RegisterRoutes(apiV1, deps.Upload, deps.UploadOptions, mws...)

		if deps.Files != nil {
			file.RegisterRoutes(apiV1, deps.Files, deps.Fs)
		}
	}
}

func SetupRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.ZapLogger(log), middleware.ZapRecovery(log))

	// 允许多个前端端口
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	if deps.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, deps.FrontendURL)
	}

	// 设置跨域请求
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Access-Token"},
		AllowCredentials: true,
	}))

	initRoute(r, deps)

	return r
}
