package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/database"
	"github.com/leafsense/leafsense_server/internal/pkg/gemini"
	"github.com/leafsense/leafsense_server/internal/pkg/modelserver"
	"github.com/leafsense/leafsense_server/internal/pkg/oss"
	"github.com/leafsense/leafsense_server/internal/pkg/pubsub"
	"github.com/leafsense/leafsense_server/internal/pkg/queue"
	"github.com/leafsense/leafsense_server/internal/repository"
	"github.com/leafsense/leafsense_server/internal/service"
	"github.com/leafsense/leafsense_server/internal/worker"
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

	// 初始化图片存储（可选 OSS）
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

	// 初始化 Repository 和 Service
	analysisRepo := repository.NewAnalysisRepository(db)
	recRepo := repository.NewRecommendationRepository(db)

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

	// 创建任务处理器
	processor := worker.NewProcessor(analysisService)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: generating recommendation for analysis %d", workerID, msg.AnalysisID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: analysis %d failed: %v", workerID, msg.AnalysisID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}

// openDatabase 未配置 MySQL host 时退回本地 SQLite
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Host == "" {
		return database.NewSQLite(cfg.Database.Database)
	}
	return database.NewMySQL(&cfg.Database)
}
