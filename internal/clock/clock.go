package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current instant. Renewal workflows read "today" through it so tests can
// pin the calendar.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
