package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"opskb/internal/api"
	"opskb/internal/config"
	"opskb/internal/database/mysql"
	"opskb/internal/kb/answer"
	"opskb/internal/kb/chat"
	"opskb/internal/kb/chunker"
	"opskb/internal/kb/embed"
	"opskb/internal/kb/extract"
	"opskb/internal/kb/llm"
	"opskb/internal/kb/processor"
	"opskb/internal/kb/retriever"
	"opskb/internal/kb/vectorstore"
	"opskb/internal/models"
	"opskb/internal/store"
	"opskb/pkg/circuitbreaker"
	"opskb/pkg/logger"
)

const queryCacheSize = 512

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Configuration and logging
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init("info")
		logger.New("main").WithError(err).Fatal("failed to load configuration")
	}
	logger.Init(cfg.Logger.Level)
	log := logger.New("main")
	log.WithField("environment", cfg.App.Environment).Info("starting opskb")

	// 2. Relational database
	db, err := mysql.GetDB(&cfg.MySQL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MySQL")
	}
	if err := db.AutoMigrate(&models.Document{}, &models.DocumentChunk{}, &models.ChatSession{}, &models.ChatMessage{}); err != nil {
		log.WithError(err).Fatal("failed to migrate schema")
	}
	st := store.New(db)

	// 3. Embedding provider. Unreachable or misconfigured is fatal here:
	// without embeddings neither ingestion nor retrieval works.
	provider, err := embed.New(&cfg.Embedding)
	if err != nil {
		log.WithError(err).Fatal("failed to create embedding provider")
	}
	embedder, err := embed.WithCache(provider, queryCacheSize)
	if err != nil {
		log.WithError(err).Fatal("failed to create embedding cache")
	}

	// 4. Vector store, with startup failover to the embedded backend
	vectors, degraded, err := vectorstore.Open(context.Background(), &cfg.VectorStore, embedder.Dimension(), logger.New("vectorstore"))
	if err != nil {
		log.WithError(err).Fatal("failed to open vector store")
	}
	defer vectors.Close()
	if degraded {
		log.Warn("running in degraded mode: embedded vector store in place of milvus")
	}

	// 5. Extraction, with optional OCR
	var engine extract.Engine
	if cfg.OCR.Enabled {
		engine, err = extract.NewOllamaEngine(cfg.OCR.Model, cfg.OCR.BaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to create ocr engine")
		}
	}
	extractor := extract.New(cfg.Documents.MaxFileSizeBytes(), cfg.OCR.MinTextLength, cfg.OCR.DPI, engine, logger.New("extract"))

	// 6. Pipeline services
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		log.WithError(err).Fatal("invalid chunking configuration")
	}
	proc := processor.New(st, extractor, ch, embedder, vectors, logger.New("processor"))
	ret := retriever.New(embedder, vectors, st, cfg.Retrieval.SimilarityFloor, cfg.Retrieval.TopK, logger.New("retriever"))

	model, err := llm.New(&cfg.LLM)
	if err != nil {
		log.WithError(err).Fatal("failed to create llm client")
	}
	if model == nil {
		log.Info("no llm configured, answers will be extractive")
	} else {
		model = llm.WithBreaker(model, circuitbreaker.New(5, 2, 30*time.Second))
	}
	synth := answer.New(model, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second, cfg.LLM.MaxRetries, cfg.LLM.ContextCharBudget, logger.New("answer"))
	chatSvc := chat.New(st, ret, synth, cfg.LLM.HistoryTurns, logger.New("chat"))

	// 7. HTTP server
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers := api.NewAPI(st, proc, ret, chatSvc, vectors, degraded, cfg.Documents.StoragePath, cfg.Documents.MaxFileSizeBytes(), logger.New("api"))
	api.RegisterRoutes(router, handlers)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}
	go func() {
		log.WithField("address", cfg.HTTP.Address).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown error")
	}
	mysql.Close()
}
