package jobs

// RepairPayload names the user/place pair whose reference must be fixed.
// The worker reloads both records, so the payload stays ID-based.
type RepairPayload struct {
	UserID    string `json:"userId"`
	PlaceID   string `json:"placeId"`
	RequestID string `json:"requestId,omitempty"`
}
