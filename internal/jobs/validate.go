package jobs

import "strings"

// ValidatePayload checks the ids every repair job needs.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	var p RepairPayload
	switch v := payload.(type) {
	case RepairPayload:
		p = v
	case *RepairPayload:
		if v == nil {
			return ErrInvalidJobPayload
		}
		p = *v
	default:
		return ErrPayloadTypeMismatch
	}

	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.PlaceID) == "" {
		return ErrInvalidJobPayload
	}

	return nil
}
