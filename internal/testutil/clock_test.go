package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Peek())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
}

func TestStepClock_ZeroStepIsFrozen(t *testing.T) {
	clock := NewStepClock(epoch, 0)
	assert.Equal(t, clock.Now(), clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(epoch, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(numGoroutines*callsPerGoroutine*time.Millisecond), clock.Peek())
}
