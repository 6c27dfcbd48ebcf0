package store

import (
	"time"

	"github.com/rickb777/date/v2/timespan"
)

type TimeSpan = timespan.TimeSpan

// Transition records one applied reduction.
type Transition[S, C any] struct {
	From   S
	To     S
	Change C
	// Span covers the reducer call that produced To.
	Span TimeSpan
}

func newTimeSpan(from, to time.Time) TimeSpan {
	return timespan.BetweenTimes(from, to)
}
