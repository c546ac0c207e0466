package interview

import "time"

// Clock abstracts time so the engine's settle delays can run against a fake
// clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled call.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock is the production clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
