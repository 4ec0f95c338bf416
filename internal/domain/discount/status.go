package discount

// Status is the derived display state of a coupon or promotion. It is never
// stored: it is computed from the current time and counters at evaluation
// time, so there is no persisted state to go stale.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusExhausted Status = "exhausted"
	StatusScheduled Status = "scheduled"
	StatusExpired   Status = "expired"
	StatusActive    Status = "active"
)
