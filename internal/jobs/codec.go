package jobs

import (
	"encoding/json"
	"fmt"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch payload.(type) {
	case RepairPayload, *RepairPayload:
	default:
		return nil, ErrPayloadTypeMismatch
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the payload type of j.Type.
func DecodePayload(j Job) (RepairPayload, error) {
	if !j.Type.IsValid() {
		return RepairPayload{}, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return RepairPayload{}, ErrInvalidJobPayload
	}

	var p RepairPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return RepairPayload{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	if err := ValidatePayload(j.Type, p); err != nil {
		return RepairPayload{}, err
	}

	return p, nil
}

func Marshal(j Job) (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Unmarshal(raw string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	if !j.Type.IsValid() {
		return Job{}, ErrInvalidJobType
	}
	return j, nil
}
