package market

import "time"

// Clock is the single trusted time source for deadline checks. All
// callers racing a deadline are ordered by the engine's clock read at
// call time, never by per-caller wall time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
