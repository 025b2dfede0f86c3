package worker

import (
	"context"
	"time"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/jobs"
)

// ProcessOne handles at most one job. It returns true when a job was taken.
// Job failures are retried or dead-lettered here and are not returned.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	j, ok, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	w.metrics.IncDequeued()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.execute(jobCtx, j)
	cancel()

	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j, result, elapsed)
		return true, nil
	}

	w.metrics.IncDone()
	w.observe(j, "done", elapsed)
	w.log.Info("repair_done", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)

	return true, nil
}

func (w *Worker) observe(j jobs.Job, result string, d time.Duration) {
	if w.prom != nil {
		w.prom.ObserveJob(string(j.Type), result, d)
	}
}

// execute is idempotent: a reference already in the wanted state is a no-op,
// and a user or place that no longer exists leaves nothing to repair.
func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	p, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	switch j.Type {
	case jobs.JobLinkCreatedPlace:
		if _, err := w.places.Get(ctx, p.PlaceID); err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				w.log.Warn("repair_place_gone", "job_id", j.ID, "place_id", p.PlaceID)
				return nil
			}
			return err
		}

		_, _, err = w.users.AddRef(ctx, p.UserID, user.RefCreated, p.PlaceID)

	case jobs.JobUnlinkCreatedPlace:
		_, _, err = w.users.RemoveRef(ctx, p.UserID, user.RefCreated, p.PlaceID)

	default:
		return jobs.ErrInvalidJobType
	}

	if apperr.IsKind(err, apperr.KindNotFound) {
		w.log.Warn("repair_user_gone", "job_id", j.ID, "user_id", p.UserID)
		return nil
	}
	return err
}

// handleFailure counts the attempt and either reschedules or dead-letters.
func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) string {
	j.Attempts++

	if j.Exhausted() || isPermanent(cause) {
		w.metrics.IncDeadLettered()
		w.log.Error("repair_dead_lettered", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts, "err", cause)

		if err := w.queue.DeadLetter(ctx, j, cause); err != nil {
			w.log.Error("dead_letter_failed", "job_id", j.ID, "err", err)
		}
		return "dead"
	}

	delay := w.backoff(j.Attempts - 1)
	w.metrics.IncRetried()
	w.log.Warn("repair_retry", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts, "delay", delay.String(), "err", cause)

	if err := w.queue.Retry(ctx, j, delay, cause); err != nil {
		w.log.Error("retry_enqueue_failed", "job_id", j.ID, "err", err)
	}
	return "retry"
}

func isPermanent(err error) bool {
	return errorsIsAny(err, jobs.ErrInvalidJobType, jobs.ErrInvalidJobPayload, jobs.ErrPayloadTypeMismatch, user.ErrBadReference)
}
