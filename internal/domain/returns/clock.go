package returns

import "time"

// Clock supplies the current time to the aggregate. The received date stamped
// on a confirmed return is the only place the domain reads the wall clock, so
// it goes through here rather than time.Now directly.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock answers with a fixed time that tests can move forward
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

var clock Clock = RealClock{}

// SetClock swaps the package clock; pair with ResetClock in a defer
func SetClock(c Clock) {
	clock = c
}

// ResetClock restores the system clock
func ResetClock() {
	clock = RealClock{}
}
