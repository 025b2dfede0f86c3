// Package breaker guards repair-job enqueueing with a per-call timeout and a
// circuit breaker, so a dead redis turns into a fast failure on the request
// path instead of a stalled write.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/travelhub/internal/jobs"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

type Config struct {
	Timeout          time.Duration // hard timeout per enqueue
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // trial calls allowed while half-open
}

type Queue struct {
	inner Enqueuer
	cfg   Config
	now   func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func New(inner Enqueuer, cfg Config) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Queue{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

func (q *Queue) Enqueue(ctx context.Context, j jobs.Job) error {
	if !q.allow() {
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	err := q.inner.Enqueue(callCtx, j)
	q.record(err)

	return err
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *Queue) allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case StateOpen:
		if q.now().Sub(q.openedAt) < q.cfg.Cooldown {
			return false
		}
		q.state = StateHalfOpen
		q.halfOpenInFlight = 1
		return true
	case StateHalfOpen:
		if q.halfOpenInFlight >= q.cfg.HalfOpenMaxCalls {
			return false
		}
		q.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (q *Queue) record(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StateHalfOpen && q.halfOpenInFlight > 0 {
		q.halfOpenInFlight--
	}

	if err == nil {
		q.consecutiveFailures = 0
		q.state = StateClosed
		return
	}

	q.consecutiveFailures++

	// a failed trial reopens immediately
	if q.state == StateHalfOpen || q.consecutiveFailures >= q.cfg.FailureThreshold {
		q.state = StateOpen
		q.openedAt = q.now()
	}
}
