// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"lawspark-go/internal/config"
	"lawspark-go/internal/handler"
	"lawspark-go/internal/middleware"
	"lawspark-go/internal/pipeline"
	"lawspark-go/internal/repository"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/database"
	"lawspark-go/pkg/embedding"
	"lawspark-go/pkg/es"
	"lawspark-go/pkg/kafka"
	"lawspark-go/pkg/llm"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/metrics"
	"lawspark-go/pkg/storage"
	"lawspark-go/pkg/throttle"
	"lawspark-go/pkg/tika"
	"lawspark-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化数据库、Redis 与外部存储
	database.InitPostgres(cfg.Database.Postgres)
	if err := repository.Migrate(database.DB); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis)

	store, err := storage.NewStore(rootCtx, cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}

	// ES 只承载元数据副本与关键词检索，不可用时降级
	var indexer service.MetadataIndexer
	if esClient, err := es.NewClient(cfg.Elasticsearch); err != nil {
		log.Warnf("Elasticsearch 初始化失败，关键词检索不可用: %v", err)
	} else {
		indexer = esClient
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// 4. 初始化 Repository
	documentRepo := repository.NewDocumentRepository(database.DB)
	embeddingRepo := repository.NewEmbeddingRepository(database.DB)
	jobRepo := repository.NewEmbeddingJobRepository(database.DB)
	metadataRepo := repository.NewMetadataRepository(database.DB)
	auditRepo := repository.NewAuditLogRepository(database.DB)
	searchLogRepo := repository.NewSearchLogRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB, cfg.Search.HistoryLimit, time.Duration(cfg.Search.HistoryTTLHours)*time.Hour)

	// 5. 初始化 Service (依赖注入)
	verifier := token.NewVerifier(cfg.Auth.JWTSecret)
	limiter := throttle.New(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst, time.Duration(cfg.Embedding.CooldownSeconds)*time.Second)
	embeddingClient := embedding.NewClient(cfg.Embedding, limiter, m)
	llmClient := llm.NewClient(cfg.LLM, m)

	embeddingService := service.NewEmbeddingService(service.EmbeddingDeps{
		Documents:  documentRepo,
		Embeddings: embeddingRepo,
		Jobs:       jobRepo,
		Metadata:   metadataRepo,
		Audit:      auditRepo,
		Indexer:    indexer,
		Embedder:   embeddingClient,
		Metrics:    m,
		BatchSize:  cfg.Pipeline.BatchSize,
		JobLease:   cfg.Pipeline.JobLease(),
	})
	searchService := service.NewSearchService(embeddingClient, embeddingRepo, searchLogRepo, indexer, cfg.Search, m)
	answerService := service.NewAnswerService(llmClient)
	chatService := service.NewChatService(searchService, answerService, llmClient, conversationRepo)
	documentService := service.NewDocumentService(service.DocumentDeps{
		Documents:     documentRepo,
		Embeddings:    embeddingRepo,
		Jobs:          jobRepo,
		Metadata:      metadataRepo,
		Audit:         auditRepo,
		Indexer:       indexer,
		Store:         store,
		Extractor:     tika.NewClient(cfg.Tika),
		Publisher:     producer,
		Answers:       answerService,
		Pipeline:      cfg.Pipeline,
		PresignExpiry: time.Duration(cfg.MinIO.PresignExpiryMinutes) * time.Minute,
	})
	adminService := service.NewAdminService(documentRepo, embeddingRepo, jobRepo, auditRepo, searchLogRepo, embeddingService)

	// 6. 启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(embeddingService)
	go kafka.StartConsumer(rootCtx, cfg.Kafka, processor, kafka.NewRedisAttemptCounter(database.RDB))

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.Metrics(m), gin.Recovery())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := middleware.AuthMiddleware(verifier, cfg.Auth.AdminRole)

	// 8. 注册路由
	apiV1 := r.Group("/api/v1", auth)
	{
		documentHandler := handler.NewDocumentHandler(documentService)
		documents := apiV1.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.POST("/text", documentHandler.CreateText)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.GET("/:id/download", documentHandler.Download)
			documents.POST("/:id/analyze", documentHandler.Analyze)
			documents.POST("/:id/anonymize", documentHandler.Anonymize)
		}

		embeddingHandler := handler.NewEmbeddingHandler(embeddingService)
		embeddings := apiV1.Group("/embeddings")
		{
			embeddings.POST("/generate", embeddingHandler.Generate)
			embeddings.GET("/:documentId/status", embeddingHandler.Status)
		}

		searchHandler := handler.NewSearchHandler(searchService)
		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/search/keyword", searchHandler.KeywordSearch)

		chatHandler := handler.NewChatHandler(chatService)
		chat := apiV1.Group("/chat")
		{
			chat.POST("/ask", chatHandler.Ask)
			chat.GET("/history", chatHandler.History)
			chat.DELETE("/history", chatHandler.ClearHistory)
		}

		adminHandler := handler.NewAdminHandler(adminService)
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin", middleware.AdminAuthMiddleware())
		{
			admin.GET("/audit-logs", adminHandler.AuditLogs)
			admin.GET("/search-logs", adminHandler.SearchLogs)
			admin.GET("/embedding-jobs", adminHandler.EmbeddingJobs)
			admin.POST("/embeddings/:documentId/regenerate", adminHandler.Regenerate)
			admin.GET("/stats", adminHandler.Stats)
		}
	}
	// Chat 路由 (WebSocket)，token 通过 ?token= 传入
	r.GET("/chat/ws", auth, handler.NewChatHandler(chatService).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 停止 Kafka 消费循环
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
