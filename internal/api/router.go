package api

import (
	"github.com/gin-gonic/gin"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/api/handler"
	"github.com/leafsense/leafsense_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	analysisHandler  *handler.AnalysisHandler
	reviewHandler    *handler.ReviewHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	analysisHandler *handler.AnalysisHandler,
	reviewHandler *handler.ReviewHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		userHandler:      userHandler,
		analysisHandler:  analysisHandler,
		reviewHandler:    reviewHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			authenticated.GET("/user/profile", r.userHandler.GetProfile)

			// 分析
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Submit)
				analyses.GET("", r.analysisHandler.List)
				analyses.GET("/:id", r.analysisHandler.Get)
				analyses.DELETE("/:id", r.analysisHandler.Delete)
				analyses.POST("/:id/recommendations", r.analysisHandler.RequestRecommendation)
			}
		}

		// 管理员接口
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.AdminOnly())
		{
			admin.GET("/recommendations/pending", r.reviewHandler.ListPending)
			admin.POST("/recommendations/:id/review", r.reviewHandler.Review)
			admin.POST("/analyses/:id/recommendations", r.reviewHandler.CreateManual)
		}
	}

	return engine
}
