package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/config"
	httpx "github.com/geocoder89/travelhub/internal/http"
	"github.com/geocoder89/travelhub/internal/http/handlers"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/geocoder89/travelhub/internal/queue/breaker"
	"github.com/geocoder89/travelhub/internal/queue/redisclient"
	"github.com/geocoder89/travelhub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// no token secret, no service
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "travelhub-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	openCtx, cancelOpen := config.WithTimeout(ctx, 15*time.Second)
	st, err := store.Open(openCtx, cfg, prom)
	cancelOpen()
	if err != nil {
		log.Error("store open failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	checks := map[string]handlers.PingFunc{"store": st.Ping}

	// without redis, a failed owner link is compensated synchronously
	var repairs handlers.RepairQueue
	var rdb *redisclient.Client
	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		repairs = breaker.New(rdb.Queue(""), breaker.Config{})
		checks["redis"] = rdb.Ping
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Tokens:   tokens,
		Repairs:  repairs,
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", st.Driver, "repair_queue", rdb != nil)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}

		if err := st.Close(sctx); err != nil {
			log.Error("store close failed", "err", err)
		}

		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
