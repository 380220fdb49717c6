// Package clock provides time abstraction for testing and production use.
// It enables deterministic testing of time-dependent logic (cache expiry,
// snapshot ages, retry waits) by allowing injection of mock clocks.
package clock

import (
	"sync"
	"time"
	// The Paris zone must resolve even on hosts without a system zone
	// database (containers, CI).
	_ "time/tzdata"
)

// ParisLocation is the reference time zone the dashboard renders in.
var ParisLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Clock provides an abstraction for time operations.
// Use RealClock in production and MockClock in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NowInParis returns the current time in the Europe/Paris zone
	NowInParis() time.Time
	// Since returns the elapsed time since t
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using actual system time.
// This is the default implementation for production use.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NowInParis returns the current system time in the Europe/Paris zone.
func (RealClock) NowInParis() time.Time {
	return time.Now().In(ParisLocation)
}

// Since returns the elapsed system time since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock implements Clock and provides a controllable, thread-safe time for tests.
// Use NewMockClock to create instances.
type MockClock struct {
	currentTime time.Time
	mu          sync.Mutex
}

// NewMockClock creates a new MockClock set to the specified time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// NowInParis returns the mock clock's current time in the Europe/Paris zone.
func (m *MockClock) NowInParis() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime.In(ParisLocation)
}

// Since returns the elapsed mock time since t.
func (m *MockClock) Since(t time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime.Sub(t)
}

// Set changes the mock clock's current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the mock clock by the specified duration.
// Use positive durations to move forward, negative to move backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}
