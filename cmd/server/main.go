package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"policy-copilot/internal/adapter/copilot_http"
	"policy-copilot/internal/di"
	"policy-copilot/internal/infra/config"
	"policy-copilot/internal/infra/logger"
)

func main() {
	// 1. Load and validate config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log := logger.New()
	slog.SetDefault(log)

	// 3. Wire components
	components := di.NewApplicationComponents(cfg, log)

	// 4. Prepare the anchor collection for semantic routing. Failure here is
	// not fatal: the router fails open per request and a later restart or
	// anchor admin call can recover the collection.
	if components.AnchorStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := components.AnchorStore.Initialize(ctx); err != nil {
			log.Warn("anchor_store_initialization_failed", "error", err.Error())
		}
		cancel()
	}

	// 5. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("http_request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()))
			return nil
		},
	}))

	// 6. Register handlers
	handler := copilot_http.NewHandler(components.AnswerUsecase, components.Router, components.AnchorStore)
	handler.RegisterRoutes(e)

	// 7. Health checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		info, err := components.Index.CollectionInfo(c.Request().Context(), cfg.Index.PolicyCollection)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "index down", "error": err.Error()})
		}
		if !info.Exists {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "policy collection missing"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 8. Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting_server",
			slog.String("addr", addr),
			slog.String("env", cfg.Env),
			slog.String("router_mode", cfg.Router.Mode),
			slog.Bool("hybrid_search", cfg.Hybrid.Enabled),
			slog.Bool("reranking", cfg.Rerank.Enabled))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
