package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/travelhub/internal/jobs"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "travelhub:repair"

// Queue stores repair jobs in three keys: a ready list consumed with BRPOP,
// a delayed sorted set scored by run-at millis, and a dead-letter list.
type Queue struct {
	rdb     *redis.Client
	ready   string
	delayed string
	dead    string
}

func (c *Client) Queue(prefix string) *Queue {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Queue{
		rdb:     c.redisdb,
		ready:   prefix + ":ready",
		delayed: prefix + ":delayed",
		dead:    prefix + ":dead",
	}
}

func (q *Queue) Enqueue(ctx context.Context, j jobs.Job) error {
	raw, err := jobs.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if j.RunAt.After(time.Now()) {
		return q.rdb.ZAdd(ctx, q.delayed, redis.Z{Score: score(j.RunAt), Member: raw}).Err()
	}

	return q.rdb.LPush(ctx, q.ready, raw).Err()
}

// Dequeue blocks up to timeout for the next ready job. ok is false when
// nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (jobs.Job, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.ready).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return jobs.Job{}, false, nil
		}
		return jobs.Job{}, false, err
	}

	// BRPOP replies [key, value]
	raw := res[1]

	j, err := jobs.Unmarshal(raw)
	if err != nil {
		// unreadable entries go straight to the dead list, untouched
		_ = q.rdb.LPush(ctx, q.dead, raw).Err()
		return jobs.Job{}, false, err
	}

	return j, true, nil
}

// Retry reschedules j after delay with its error recorded.
func (q *Queue) Retry(ctx context.Context, j jobs.Job, delay time.Duration, cause error) error {
	j.Status = jobs.JobRetrying
	j.RunAt = time.Now().Add(delay).UTC()
	if cause != nil {
		j.LastError = cause.Error()
	}

	return q.Enqueue(ctx, j)
}

func (q *Queue) DeadLetter(ctx context.Context, j jobs.Job, cause error) error {
	j.Status = jobs.JobDead
	if cause != nil {
		j.LastError = cause.Error()
	}

	raw, err := jobs.Marshal(j)
	if err != nil {
		return err
	}

	return q.rdb.LPush(ctx, q.dead, raw).Err()
}

// PromoteDue moves delayed jobs whose run-at has passed onto the ready list.
// ZREM decides ownership so concurrent workers never promote twice.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.rdb.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(score(now), 'f', 0, 64),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, raw := range due {
		removed, err := q.rdb.ZRem(ctx, q.delayed, raw).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}

		if err := q.rdb.LPush(ctx, q.ready, raw).Err(); err != nil {
			return moved, err
		}
		moved++
	}

	return moved, nil
}

type Depths struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

func (q *Queue) Depths(ctx context.Context) (Depths, error) {
	pipe := q.rdb.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	delayed := pipe.ZCard(ctx, q.delayed)
	dead := pipe.LLen(ctx, q.dead)

	if _, err := pipe.Exec(ctx); err != nil {
		return Depths{}, err
	}

	return Depths{Ready: ready.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
