package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/handler"
	"github.com/jengzang/roadsim-backend-go/internal/middleware"
	"github.com/jengzang/roadsim-backend-go/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, networks *service.NetworkService, runs *service.RunService, jobs *service.JobService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// CORS 中间件
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsCfg))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Road simulation API is running",
		})
	})

	networkHandler := handler.NewNetworkHandler(networks)
	runHandler := handler.NewRunHandler(runs)
	jobHandler := handler.NewJobHandler(jobs)

	// mutating routes need a token and are rate limited per subject
	auth := middleware.Auth(cfg.JWTSecret)
	limit := middleware.RateLimit(cfg.RateLimit, time.Minute)
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{auth, limit, h}
	}

	// API 路由组
	api := r.Group("/api/v1")
	{
		networksGroup := api.Group("/networks")
		{
			networksGroup.GET("/:id", networkHandler.GetByID)
			networksGroup.POST("", guarded(networkHandler.Import)...)
		}

		runsGroup := api.Group("/runs")
		{
			runsGroup.GET("/:id", runHandler.Get)
			runsGroup.GET("/:id/stats", runHandler.Stats)
			runsGroup.GET("/:id/stream", runHandler.Stream)
			runsGroup.POST("", guarded(runHandler.Create)...)
			runsGroup.POST("/:id/step", guarded(runHandler.Step)...)
			runsGroup.DELETE("/:id", guarded(runHandler.Delete)...)
			runsGroup.GET("/:id/jobs", jobHandler.List)
			runsGroup.POST("/:id/jobs", guarded(jobHandler.Create)...)
		}

		jobsGroup := api.Group("/jobs")
		{
			jobsGroup.GET("/:id", jobHandler.Get)
			jobsGroup.DELETE("/:id", guarded(jobHandler.Cancel)...)
		}
	}

	return r
}
