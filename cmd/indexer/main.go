// Command indexer consumes the comment event stream and maintains the search
// documents. Run it when the API servers have INDEXER_ENABLED=false.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"commentboard/internal/bootstrap"
	"commentboard/internal/config"
	"commentboard/internal/indexer"
	"commentboard/internal/middleware"
	"commentboard/internal/notifications"
	"commentboard/internal/repository"
)

func main() {
	workers := flag.Int("workers", 4, "Number of concurrent stream consumers")
	consumer := flag.String("consumer", "", "Consumer name prefix (defaults to a random ID)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env)

	stopTracing, err := bootstrap.InitTracing(cfg, "commentboard-indexer")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() { _ = stopTracing(context.Background()) }()

	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if rdb == nil {
		log.Fatal("Redis is required for the indexer")
	}
	defer func() { _ = rdb.Close() }()

	queue, err := notifications.NewEventQueue(rdb, notifications.EventQueueConfig{
		Stream:     cfg.EventStream,
		Group:      cfg.EventGroup,
		Consumer:   *consumer,
		MaxRetries: cfg.EventMaxRetries,
	})
	if err != nil {
		log.Fatalf("Failed to create event queue: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := indexer.New(repository.NewCommentRepository(db), repository.NewDocumentRepository(db))
	middleware.Logger.Info("indexer starting", "stream", queue.Stream(), "workers", *workers)
	if err := ix.Run(ctx, queue, *workers); err != nil && ctx.Err() == nil {
		log.Fatalf("Indexer error: %v", err)
	}
	middleware.Logger.Info("indexer stopped")
}
