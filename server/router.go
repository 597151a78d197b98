package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BuildInfo 构建信息, 由 main 通过 -ldflags 注入
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
	GitBranch string
}

// NewRouter 注册中间件和全部路由
func NewRouter(h *Handler, info BuildInfo) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": info.Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    info.Version,
			"build_time": info.BuildTime,
			"git_commit": info.GitCommit,
			"git_branch": info.GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/image", h.UploadImage)
		api.POST("/click", h.Click)
		api.GET("/frame", h.Frame)
		api.GET("/mask", h.Mask)
		api.GET("/threshold", h.GetThreshold)
		api.PUT("/threshold", h.SetThreshold)
		api.GET("/status", h.Status)
	}

	return r
}
