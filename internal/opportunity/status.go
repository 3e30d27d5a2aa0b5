package opportunity

import "time"

// Status is the derived comment period classification
type Status string

const (
	StatusActive   Status = "active"
	StatusUpcoming Status = "upcoming"
	StatusClosed   Status = "closed"
	StatusUnknown  Status = "unknown"
)

// Valid reports whether s is one of the four published statuses
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusUpcoming, StatusClosed, StatusUnknown:
		return true
	}
	return false
}

// ComputeStatus classifies a comment period against now at day granularity.
// Both bounds are inclusive: the period is active on its start date and on
// its end date. A missing bound is treated as open on that side.
func ComputeStatus(start, end, now time.Time) Status {
	if start.IsZero() && end.IsZero() {
		return StatusUnknown
	}

	today := Day(now)
	if !start.IsZero() && today.Before(Day(start)) {
		return StatusUpcoming
	}
	if !end.IsZero() && today.After(Day(end)) {
		return StatusClosed
	}
	return StatusActive
}

// Refresh recomputes the status of o against now
func (o *Opportunity) Refresh(now time.Time) {
	o.Status = ComputeStatus(o.CommentStart, o.CommentEnd, now)
}
