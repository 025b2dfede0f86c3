package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxAttempts = 5

// Job is one queued unit of repair work, serialized as JSON into redis.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewJob builds a pending job; a zero runAt means now.
func NewJob(t JobType, payloadJSON []byte, runAt time.Time) (Job, error) {
	if !t.IsValid() {
		return Job{}, ErrInvalidJobType
	}
	if len(payloadJSON) == 0 {
		return Job{}, ErrInvalidJobPayload
	}

	now := time.Now().UTC()

	if runAt.IsZero() {
		runAt = now
	}

	return Job{
		ID:          uuid.NewString(),
		Type:        t,
		Payload:     payloadJSON,
		Status:      JobPending,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       runAt,
		CreatedAt:   now,
	}, nil
}

// NewRepairJob validates, encodes and wraps p in one step.
func NewRepairJob(t JobType, p RepairPayload) (Job, error) {
	if err := ValidatePayload(t, p); err != nil {
		return Job{}, err
	}

	b, err := EncodePayload(t, p)
	if err != nil {
		return Job{}, err
	}

	return NewJob(t, b, time.Time{})
}

// Exhausted reports whether another failure should dead-letter the job.
func (j Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
