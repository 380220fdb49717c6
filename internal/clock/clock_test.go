package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	result := c.Now()
	after := time.Now()

	assert.False(t, result.Before(before), "RealClock.Now() should not be before the call")
	assert.False(t, result.After(after), "RealClock.Now() should not be after the call")
}

func TestRealClock_Since(t *testing.T) {
	c := RealClock{}
	start := time.Now().Add(-time.Minute)

	assert.GreaterOrEqual(t, c.Since(start), time.Minute)
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	c := NewMockClock(fixedTime)

	assert.Equal(t, fixedTime, c.Now())
	// Should return the same time on repeated calls
	assert.Equal(t, fixedTime, c.Now())
}

func TestNowInParis(t *testing.T) {
	// 12:00 UTC in summer is 14:00 in Paris (CEST, UTC+2).
	fixedTime := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(fixedTime)

	paris := c.NowInParis()
	assert.Equal(t, "Europe/Paris", paris.Location().String())
	assert.Equal(t, 14, paris.Hour())
	assert.True(t, paris.Equal(fixedTime), "zone conversion must not move the instant")

	real := RealClock{}.NowInParis()
	assert.Equal(t, "Europe/Paris", real.Location().String())
}

func TestMockClock_Since(t *testing.T) {
	fixedTime := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	c := NewMockClock(fixedTime)

	assert.Equal(t, 30*time.Minute, c.Since(fixedTime.Add(-30*time.Minute)))

	c.Advance(20 * time.Second)
	assert.Equal(t, 20*time.Second, c.Since(fixedTime))
}

func TestMockClock_Set(t *testing.T) {
	initialTime := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	newTime := time.Date(2024, 12, 25, 12, 0, 0, 0, time.UTC)

	c := NewMockClock(initialTime)
	assert.Equal(t, initialTime, c.Now())

	c.Set(newTime)
	assert.Equal(t, newTime, c.Now())
}

func TestMockClock_Advance(t *testing.T) {
	initialTime := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	c := NewMockClock(initialTime)

	// Advance by 1 hour
	c.Advance(1 * time.Hour)
	expected := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, expected, c.Now())

	// Advance by 30 minutes
	c.Advance(30 * time.Minute)
	expected = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, expected, c.Now())

	// Advance by negative duration (go back in time)
	c.Advance(-1 * time.Hour)
	expected = time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, expected, c.Now())
}

// TestMockClock_ConcurrentAccess verifies thread-safety of MockClock.
// Run with '-race' flag to detect race conditions.
func TestMockClock_ConcurrentAccess(t *testing.T) {
	initialTime := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	c := NewMockClock(initialTime)

	const goroutines = 100
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines * 3) // readers, setters, and advancers

	// Concurrent readers
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				_ = c.Now()
				_ = c.Since(initialTime)
			}
		}()
	}

	// Concurrent setters
	for i := range goroutines {
		go func(offset int) {
			defer wg.Done()
			for j := range iterations {
				c.Set(initialTime.Add(time.Duration(offset+j) * time.Second))
			}
		}(i)
	}

	// Concurrent advancers
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.Advance(time.Millisecond)
			}
		}()
	}

	// Wait for all goroutines to complete
	wg.Wait()

	// If we reach here without panics or race detector errors, the test passes
	// Just verify the clock still works
	_ = c.Now()
}
