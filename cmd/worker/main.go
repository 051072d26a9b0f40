// Command worker consumes the auto-reply queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/carlmjohnson/versioninfo"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dead := flag.Bool("dead", false, "List dead-lettered tasks and exit")
	limit := flag.Int64("limit", 50, "Maximum dead-lettered tasks to list")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingFromConfig(cfg, "agora-worker"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *dead {
		q, err := bootstrap.AutoReplyQueue(cfg, rdb)
		if err != nil {
			return err
		}
		tasks, err := q.ListDead(ctx, *limit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s\t%s\tattempt=%d\t%s\n", t.ID, t.Type, t.Attempt, t.LastError)
		}
		log.Printf("%d dead-lettered task(s) on %s", len(tasks), q.Name())
		return nil
	}

	consumer, err := bootstrap.NewAutoReplyConsumer(cfg, db, rdb)
	if err != nil {
		return err
	}
	middleware.Logger.Info("auto-reply worker starting",
		slog.String("version", versioninfo.Short()),
		slog.String("queue", cfg.QueueName),
		slog.Int("workers", cfg.QueueWorkers))

	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	middleware.Logger.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := consumer.Shutdown(shutdownCtx); err != nil {
		middleware.Logger.Error("worker shutdown error", slog.String("error", err.Error()))
		return err
	}
	return <-errCh
}
