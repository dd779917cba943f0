package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/api"
	"github.com/leafsense/leafsense_server/internal/api/handler"
	"github.com/leafsense/leafsense_server/internal/database"
	"github.com/leafsense/leafsense_server/internal/pkg/gemini"
	"github.com/leafsense/leafsense_server/internal/pkg/modelserver"
	"github.com/leafsense/leafsense_server/internal/pkg/oss"
	"github.com/leafsense/leafsense_server/internal/pkg/pubsub"
	"github.com/leafsense/leafsense_server/internal/pkg/queue"
	"github.com/leafsense/leafsense_server/internal/pkg/ws"
	"github.com/leafsense/leafsense_server/internal/repository"
	"github.com/leafsense/leafsense_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化图片存储：OSS 未配置时退回本地目录
	var imageStore service.ImageStore
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client, falling back to local storage: %v", err)
			imageStore = service.NewLocalImageStore(cfg.Upload.LocalDir)
		} else {
			log.Println("OSS client initialized")
			imageStore = service.NewOSSImageStore(ossClient)
		}
	} else {
		imageStore = service.NewLocalImageStore(cfg.Upload.LocalDir)
	}

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.RecommendationQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 WebSocket Hub，并把进度消息转发给在线用户
	wsHub := ws.NewHub()
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			if !wsHub.IsOnline(msg.UserID) {
				return
			}
			if err := wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
				log.Printf("Failed to push progress to user %d: %v", msg.UserID, err)
			}
		})
		if err != nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	recRepo := repository.NewRecommendationRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	analysisService := service.NewAnalysisService(
		analysisRepo,
		recRepo,
		service.NewIntakeValidator(&cfg.Upload),
		service.NewInferenceService(modelserver.NewClient(&cfg.Inference), &cfg.Inference),
		service.NewRecommendationService(gemini.NewClient(&cfg.Recommendation), &cfg.Recommendation),
		imageStore,
		publisher,
		jobQueue,
		cfg,
	)
	reviewService := service.NewReviewService(recRepo, analysisRepo)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		analysisHandler,
		reviewHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openDatabase 未配置 MySQL host 时退回本地 SQLite
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Host == "" {
		return database.NewSQLite(cfg.Database.Database)
	}
	return database.NewMySQL(&cfg.Database)
}
