// Command server runs the Agora HTTP API.
package main

import (
	"context"
	"errors"
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
	"agora/internal/server"

	"github.com/carlmjohnson/versioninfo"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

// @title Agora API
// @version 1.0
// @description Posts and comments API with moderation, auto-replies and comment analytics.

// @contact.name API Support
// @contact.email support@agora.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	showVersion := flag.Bool("version", false, "Print the build version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(versioninfo.Short())
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingFromConfig(cfg, "agora-api"))
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDemo: cfg.SeedDemo})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)

	if cfg.QueueInlineWorker {
		consumer, err := bootstrap.NewAutoReplyConsumer(cfg, db, rdb)
		switch {
		case errors.Is(err, bootstrap.ErrQueueUnavailable):
			middleware.Logger.Warn("inline auto-reply worker disabled: redis unavailable")
		case err != nil:
			log.Fatalf("Failed to create auto-reply worker: %v", err)
		default:
			g.Go(func() error { return consumer.Run(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		middleware.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
