package domain

import "time"

// VisibilityState tracks one post's viewport presence. AccumulatedMs only
// grows; it is reset solely through an explicit session reset.
type VisibilityState struct {
	Visible       bool
	IntervalStart time.Time
	AccumulatedMs int64
}
