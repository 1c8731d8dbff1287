package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"prompt_trace/internal/blob"
	"prompt_trace/internal/config"
	"prompt_trace/internal/processing"
	"prompt_trace/internal/queue"
	"prompt_trace/internal/storage"
	"prompt_trace/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db.Conn().DB); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Artifact store: S3 when a bucket is configured, in-memory for
	// local development.
	var blobs blob.Store
	if cfg.Blob.Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, cfg.Blob.Bucket, cfg.Blob.Region, cfg.Blob.Prefix)
		if err != nil {
			log.Fatalf("Failed to initialize blob store: %v", err)
		}
	} else {
		log.Println("No blob bucket configured, using in-memory store")
		blobs = blob.NewMemoryStore()
	}

	// Processing queue: Redis when an address is configured.
	queueCfg := queue.DefaultConfig(cfg.Queue.Name)
	queueCfg.BatchSize = cfg.Queue.BatchSize
	queueCfg.BatchTimeout = cfg.Queue.BatchTimeout
	queueCfg.MaxRetries = cfg.Queue.MaxRetries
	queueCfg.RetryBackoff = cfg.Queue.RetryBackoff
	queueCfg.UseRedis = cfg.Redis.Address != ""
	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB

	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
	)
	if queueCfg.UseRedis {
		q, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			log.Fatalf("Failed to create processing queue: %v", err)
		}
		dlq, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			log.Fatalf("Failed to create dead letter queue: %v", err)
		}
	} else {
		log.Println("No Redis address configured, using in-memory queue")
		q = queue.NewMemoryQueue(queueCfg)
		dlq = queue.NewMemoryDeadLetterQueue()
	}
	defer q.Close()
	defer dlq.Close()

	logs := storage.NewExecutionLogRepository(db)
	fields := storage.NewLogFieldRepository(db)
	traces := storage.NewTraceRepository(db)

	processor := processing.NewLogProcessor(logs, fields, blobs)
	extractor := processing.NewTraceExtractor(logs, traces, blobs, processing.ExtractorConfig{
		MaxAttempts:  cfg.Extraction.MaxAttempts,
		RetryBackoff: cfg.Extraction.RetryBackoff,
	})

	worker := processing.NewWorker(q, dlq, logs, processor, extractor, queueCfg)
	worker.Start(ctx)
	log.Println("Processing worker started")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	if err := worker.Stop(); err != nil {
		log.Printf("Worker stop failed: %v", err)
	}
	log.Println("Worker exited")
}
