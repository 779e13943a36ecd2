package upload

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, service *Service, opts HandlerOptions, middlewares ...gin.HandlerFunc) {
	h := NewHandler(service, opts)

	g := r.Group("/upload", middlewares...)
	{
		g.POST("", h.Upload)
		g.GET("/status", h.Status)
	}
}
