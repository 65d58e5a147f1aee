package grading

import "time"

// Status is the visible state of an assessment's time window.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusComingSoon Status = "coming-soon"
	StatusOpen       Status = "open"
	StatusEnded      Status = "ended"
)

// Window is the start/end pair that drives Status. Either bound may be unset.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// ComputeStatus derives the status from the window and the current time.
func ComputeStatus(w Window, now time.Time) Status {
	switch {
	case w.Start == nil && w.End == nil:
		return StatusDraft
	case w.End != nil && !now.Before(*w.End):
		return StatusEnded
	case w.Start != nil && now.Before(*w.Start):
		return StatusComingSoon
	default:
		return StatusOpen
	}
}

// StatusEntry is a memoised status. It is only an optimisation: ComputeStatus
// over the same window agrees with Value for as long as the entry is fresh.
type StatusEntry struct {
	Value      Status    `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// NewStatusEntry computes the status at now. The entry stays valid for ttl, cut
// short by the next window boundary so a cached value never outlives a transition.
func NewStatusEntry(w Window, now time.Time, ttl time.Duration) StatusEntry {
	validUntil := now.Add(ttl)
	for _, boundary := range []*time.Time{w.Start, w.End} {
		if boundary != nil && boundary.After(now) && boundary.Before(validUntil) {
			validUntil = *boundary
		}
	}

	return StatusEntry{
		Value:      ComputeStatus(w, now),
		ComputedAt: now,
		ValidUntil: validUntil,
	}
}

// IsFresh reports whether a value computed at computedAt may still be served at now.
func IsFresh(computedAt, now time.Time, ttl time.Duration) bool {
	return !now.Before(computedAt) && now.Sub(computedAt) < ttl
}

// Fresh reports whether the entry may still be served at now.
func (e StatusEntry) Fresh(now time.Time) bool {
	return IsFresh(e.ComputedAt, now, e.ValidUntil.Sub(e.ComputedAt))
}
