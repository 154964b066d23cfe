package main

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"lawspark-go/internal/config"
	"lawspark-go/internal/repository"
	"lawspark-go/internal/service"
	"lawspark-go/pkg/database"
	"lawspark-go/pkg/embedding"
	"lawspark-go/pkg/llm"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/throttle"
)

// env 汇总命令需要的依赖，按需创建。
type env struct {
	cfg config.Config
	db  *gorm.DB
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		log.Init("debug", "console", "")
	}
	db, err := database.OpenPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{cfg: cfg, db: db}, nil
}

func (e *env) embedder() embedding.Client {
	limiter := throttle.New(e.cfg.Embedding.RequestsPerSecond, e.cfg.Embedding.Burst, time.Duration(e.cfg.Embedding.CooldownSeconds)*time.Second)
	return embedding.NewClient(e.cfg.Embedding, limiter, nil)
}

func (e *env) embeddingService() service.EmbeddingService {
	return service.NewEmbeddingService(service.EmbeddingDeps{
		Documents:  repository.NewDocumentRepository(e.db),
		Embeddings: repository.NewEmbeddingRepository(e.db),
		Jobs:       repository.NewEmbeddingJobRepository(e.db),
		Metadata:   repository.NewMetadataRepository(e.db),
		Audit:      repository.NewAuditLogRepository(e.db),
		Embedder:   e.embedder(),
		BatchSize:  e.cfg.Pipeline.BatchSize,
		JobLease:   e.cfg.Pipeline.JobLease(),
	})
}

func (e *env) searchService() service.SearchService {
	return service.NewSearchService(
		e.embedder(),
		repository.NewEmbeddingRepository(e.db),
		repository.NewSearchLogRepository(e.db),
		nil,
		e.cfg.Search,
		nil,
	)
}

func (e *env) answerService() service.AnswerService {
	return service.NewAnswerService(llm.NewClient(e.cfg.LLM, nil))
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
