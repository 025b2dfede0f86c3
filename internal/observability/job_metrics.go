package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics are in-process repair counters served by the worker's /stats.
type JobMetrics struct {
	dequeued     atomic.Uint64
	done         atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64
	promoted     atomic.Uint64

	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncDequeued() { m.dequeued.Add(1) }
func (m *JobMetrics) IncDone() { m.done.Add(1) }
func (m *JobMetrics) IncRetried() { m.retried.Add(1) }
func (m *JobMetrics) IncDeadLettered() { m.deadLettered.Add(1) }
func (m *JobMetrics) AddPromoted(n uint64) { m.promoted.Add(n) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr || m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Dequeued      uint64 `json:"dequeued"`
	Done          uint64 `json:"done"`
	Retried       uint64 `json:"retried"`
	DeadLettered  uint64 `json:"deadLettered"`
	Promoted      uint64 `json:"promoted"`
	DurationCount uint64 `json:"durationCount"`
	AvgDurationMs int64  `json:"avgDurationMs"`
	MaxDurationMs int64  `json:"maxDurationMs"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return JobMetricsSnapshot{
		Dequeued:      m.dequeued.Load(),
		Done:          m.done.Load(),
		Retried:       m.retried.Load(),
		DeadLettered:  m.deadLettered.Load(),
		Promoted:      m.promoted.Load(),
		DurationCount: count,
		AvgDurationMs: avg.Milliseconds(),
		MaxDurationMs: time.Duration(m.durationMax.Load()).Milliseconds(),
	}
}
