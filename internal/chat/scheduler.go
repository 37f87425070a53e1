package chat

import "time"

// Scheduler runs a function once after a delay. The simulated participant
// uses it in place of a real-time transport.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
