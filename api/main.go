package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/DeafMist/thread-scout/internal/config"
	"github.com/DeafMist/thread-scout/internal/elasticsearch"
	"github.com/DeafMist/thread-scout/internal/engine"
	"github.com/DeafMist/thread-scout/internal/jobs"
	"github.com/DeafMist/thread-scout/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	eng, err := engine.FromConfig(ctx, &cfg.Engine, log)
	if err != nil {
		log.Error("init engine", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, cfg: cfg, engine: eng, now: time.Now}

	if cfg.ElasticsearchAddr != "" {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.reports = esClient
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := jobs.NewPublisher(cfg.KafkaBrokers, cfg.JobsTopic)
		defer pub.Close()
		srv.jobs = pub
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Multi-agent runs routinely take minutes.
		WriteTimeout: time.Duration(cfg.MaxAttempts)*cfg.ProviderTimeout + cfg.AgentTimeout + time.Minute,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.Bool("reports", srv.reports != nil),
			slog.Bool("jobs", srv.jobs != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/search-summarize", s.handleSearch)
		r.Post("/estimate-cost", s.handleEstimate)
		r.Post("/research-jobs", s.handleSubmitJob)
		r.Get("/reports", s.handleReports)
	})
	return r
}
