package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/ai"
	"github.com/solenhart/docingest/internal/archive"
	"github.com/solenhart/docingest/internal/config"
	"github.com/solenhart/docingest/internal/db"
	"github.com/solenhart/docingest/internal/embedcache"
	"github.com/solenhart/docingest/internal/handler"
	"github.com/solenhart/docingest/internal/ingest"
	"github.com/solenhart/docingest/internal/job"
	"github.com/solenhart/docingest/internal/middleware"
	"github.com/solenhart/docingest/internal/model"
	"github.com/solenhart/docingest/internal/repo"
	"github.com/solenhart/docingest/internal/schedule"
	"github.com/solenhart/docingest/internal/service"
	"github.com/solenhart/docingest/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docingest",
		Short: "document ingestion service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the ingestion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			dbConn, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			return runServer(cfg, dbConn)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "retry vector indexing for documents that completed without vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			dbConn, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			return runReindex(cfg, dbConn)
		},
	}
	reindexCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dbConn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(dbConn); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return dbConn, nil
}

type stack struct {
	docs      *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	vectors   vector.Store
	processor *service.Processor
	documents *service.DocumentService
	bulk      *service.BulkService
}

func buildStack(ctx context.Context, cfg *config.Config, dbConn *sql.DB) (*stack, error) {
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	docRepo := repo.NewDocumentRepo(dbConn)
	chunkRepo := repo.NewChunkRepo(dbConn)

	var store vector.Store
	if cfg.AI.Provider != "" && cfg.AI.Provider != "none" {
		provider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider: %w", err)
		}
		embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel)
		if cfg.AI.CacheSize > 0 {
			embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMin)*time.Minute)
		}
		store = vector.NewPgvectorStore(dbConn, embedder, cfg.Vector.EmbedBatch, cfg.Vector.EmbedWorkers)
	}

	var archiver archive.Archiver
	if cfg.Archive.Enable {
		a, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
		archiver = a
	}

	renamer := ingest.NewRenamer(cfg.Ingest.RenameAttempts, time.Duration(cfg.Ingest.RenameDelayMS)*time.Millisecond)
	pipeline := ingest.NewPipeline(renamer)
	processor := service.NewProcessor(docRepo, chunkRepo, pipeline, store, archiver, service.ProcessorOptions{
		ChunkSize:       cfg.Ingest.ChunkSize,
		ChunkOverlap:    cfg.Ingest.ChunkOverlap,
		AutoRename:      !cfg.Ingest.DisableAutoRename,
		CheckDuplicates: !cfg.Ingest.SkipDuplicateCheck,
		MaxFilenameLen:  cfg.Ingest.MaxFilenameLen,
	})
	documents := service.NewDocumentService(docRepo, chunkRepo, store, processor, renamer, service.DocumentServiceOptions{
		UploadDir:          cfg.Upload.Dir,
		MaxUploadBytes:     cfg.Upload.MaxSizeMB * 1024 * 1024,
		MaxFilenameLen:     cfg.Ingest.MaxFilenameLen,
		SkipDuplicateCheck: cfg.Ingest.SkipDuplicateCheck,
		SearchTopK:         cfg.Vector.SearchTopK,
	})
	bulk := service.NewBulkService(documents, cfg.Upload.MaxBulkFiles)

	return &stack{
		docs:      docRepo,
		chunks:    chunkRepo,
		vectors:   store,
		processor: processor,
		documents: documents,
		bulk:      bulk,
	}, nil
}

func runServer(cfg *config.Config, dbConn *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, cfg, dbConn)
	if err != nil {
		return err
	}
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("upload_dir", cfg.Upload.Dir),
		zap.Bool("vectors", st.vectors != nil),
		zap.Bool("archive", cfg.Archive.Enable),
	)

	scheduler := schedule.NewCronScheduler()
	maxAge := time.Duration(cfg.Cleanup.BulkJobMaxAgeHours) * time.Hour
	if err := scheduler.AddJob(job.NewBulkCleanupJob(st.bulk, maxAge), cfg.Cleanup.Schedule); err != nil {
		return fmt.Errorf("schedule bulk cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	maxUploadBytes := cfg.Upload.MaxSizeMB * 1024 * 1024
	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(st.documents, maxUploadBytes),
		Bulk:      handler.NewBulkHandler(st.bulk, cfg.Upload.Dir, cfg.Upload.MaxBulkFiles, maxUploadBytes),
		Search:    handler.NewSearchHandler(st.documents),
	}
	if cfg.Upload.RateLimitMS > 0 {
		deps.RateLimit = middleware.RateLimit(time.Duration(cfg.Upload.RateLimitMS) * time.Millisecond)
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runReindex(cfg *config.Config, dbConn *sql.DB) error {
	ctx := context.Background()
	st, err := buildStack(ctx, cfg, dbConn)
	if err != nil {
		return err
	}
	if st.vectors == nil {
		return fmt.Errorf("no embed provider configured")
	}
	docs, err := st.docs.ListByStatus(ctx, model.DocStatusCompletedNoVectors)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	logger.Info("reindex started", zap.Int("documents", len(docs)))
	indexed := 0
	failed := 0
	for _, doc := range docs {
		if err := st.processor.RetryIndexing(ctx, doc.ID); err != nil {
			failed += 1
			logger.Warn("reindex document failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		indexed += 1
		time.Sleep(200 * time.Millisecond) // avoid provider rate limits
	}
	logger.Info("reindex finished", zap.Int("indexed", indexed), zap.Int("failed", failed))
	return nil
}
