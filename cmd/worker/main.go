package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/travelhub/internal/config"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/geocoder89/travelhub/internal/queue/redisclient"
	"github.com/geocoder89/travelhub/internal/queue/worker"
	"github.com/geocoder89/travelhub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if cfg.RedisAddr == "" {
		log.Error("REDIS_ADDR must be set for the repair worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "travelhub-worker", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	openCtx, cancelOpen := config.WithTimeout(ctx, 15*time.Second)
	st, err := store.Open(openCtx, cfg, prom)
	cancelOpen()
	if err != nil {
		log.Error("store open failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	rdb := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	w := worker.New(worker.Config{
		Concurrency:     4,
		PollTimeout:     time.Second,
		PromoteInterval: time.Second,
		ShutdownGrace:   10 * time.Second,
	}, rdb.Queue(""), st.Users, st.Places, log, prom, nil)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", w.HealthHandler(map[string]worker.Pinger{
		"store": st,
		"redis": rdb,
	}))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "addr", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(sctx)

	if err := rdb.Close(); err != nil {
		log.Error("redis close failed", "err", err)
	}
	if err := st.Close(sctx); err != nil {
		log.Error("store close failed", "err", err)
	}
	if err := shutdownTracer(sctx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}
