package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/jobs"
	"github.com/geocoder89/travelhub/internal/observability"
)

type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (jobs.Job, bool, error)
	Retry(ctx context.Context, j jobs.Job, delay time.Duration, cause error) error
	DeadLetter(ctx context.Context, j jobs.Job, cause error) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

type UserStore interface {
	AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
	RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
}

type PlaceReader interface {
	Get(ctx context.Context, id string) (place.Place, error)
}

type Config struct {
	WorkerID        string
	Concurrency     int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
	JobTimeout      time.Duration
	ShutdownGrace   time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		host, _ := os.Hostname()
		c.WorkerID = host + "-" + strconv.Itoa(os.Getpid())
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	return c
}

// Worker applies repair jobs that keep users' createdPlaces in step with
// the places collection after a partial write.
type Worker struct {
	cfg     Config
	queue   JobQueue
	users   UserStore
	places  PlaceReader
	log     *slog.Logger
	prom    *observability.Prom
	metrics *observability.JobMetrics
	backoff func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, queue JobQueue, users UserStore, places PlaceReader, log *slog.Logger, prom *observability.Prom, metrics *observability.JobMetrics) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:     cfg.withDefaults(),
		queue:   queue,
		users:   users,
		places:  places,
		log:     log,
		prom:    prom,
		metrics: metrics,
		backoff: ExponentialBackoff,
		ready:   true,
	}
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) IsReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run consumes jobs with cfg.Concurrency loops plus one promoter until ctx
// is cancelled, then waits up to ShutdownGrace for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker_started", "worker_id", w.cfg.WorkerID, "concurrency", w.cfg.Concurrency)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promoteLoop(ctx)
	}()

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.consumeLoop(ctx, slot)
		}(i)
	}

	<-ctx.Done()
	w.setReady(false)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker_stopped", "worker_id", w.cfg.WorkerID)
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		return fmt.Errorf("worker %s: shutdown grace %s exceeded", w.cfg.WorkerID, w.cfg.ShutdownGrace)
	}
}

func (w *Worker) consumeLoop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("dequeue_failed", "slot", slot, "err", err)
			sleep(ctx, w.cfg.PollTimeout)
		}
	}
}

func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := w.queue.PromoteDue(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error("promote_failed", "err", err)
				}
				continue
			}
			if n > 0 {
				w.metrics.AddPromoted(uint64(n))
				w.log.Debug("promoted_delayed_jobs", "count", n)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
