// Package server exposes the chat orchestration engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/llm"
	"github.com/mavik-ai/prescreen/internal/orchestrator"
	"github.com/mavik-ai/prescreen/internal/store"
	"github.com/mavik-ai/prescreen/internal/telemetry"
	"github.com/mavik-ai/prescreen/internal/tools"
	"github.com/mavik-ai/prescreen/internal/tools/extract"
	"github.com/mavik-ai/prescreen/internal/tools/finance"
	"github.com/mavik-ai/prescreen/internal/tools/report"
	"github.com/mavik-ai/prescreen/internal/tools/retrieval"
	"github.com/mavik-ai/prescreen/internal/tools/websearch"
	"github.com/mavik-ai/prescreen/internal/uploads"
)

func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	allowOrigins := cfg.Server.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// Run audit is optional: without Postgres the service still answers,
	// it just keeps no history.
	var st *store.Store
	if dsn := cfg.PostgresDSN(); dsn != "" {
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			baseLogger.Printf("migrations: %v", err)
		}
		var err error
		st, err = store.NewWithDSN(ctx, dsn)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	} else {
		baseLogger.Printf("postgres not configured, run audit disabled")
	}

	// Upload store is optional the same way.
	var up *uploads.Store
	if cfg.Storage.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s:%d): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
		up = uploads.New(rdb, cfg.Storage.Redis.UploadTTL)
	} else {
		baseLogger.Printf("redis not configured, uploads disabled")
	}

	tele := telemetry.New(cfg.Telemetry.Enabled)
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	retrieve, err := retrieval.New(cfg.Tools.Retrieval, nil)
	if err != nil {
		return err
	}
	registry, err := tools.NewRegistry(
		extract.New(cfg.Tools.Extract, nil),
		retrieve,
		websearch.New(cfg.Tools.WebSearch, nil),
		finance.New(nil),
		report.New(cfg.Tools.Report, nil),
	)
	if err != nil {
		return err
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := orchestrator.New(cfg, orchLogger, tele, registry, provider)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	ch := &ChatHandler{Orch: orch, Store: st, Logger: log.New(log.Writer(), "[CHAT] ", log.LstdFlags)}
	ch.Register(api)
	uh := &UploadHandler{Uploads: up}
	uh.Register(api)
	rh := &RunsHandler{Store: st}
	rh.Register(api)

	if st != nil {
		cleaner := &Cleaner{
			Store:  st,
			Cron:   cfg.Storage.Retention.Cron,
			MaxAge: cfg.Storage.Retention.MaxAge,
			Stop:   make(chan struct{}),
			Logger: log.New(log.Writer(), "[CLEANER] ", log.LstdFlags),
		}
		cleaner.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
