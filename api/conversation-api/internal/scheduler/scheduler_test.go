package internal_scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_EveryFiresPerPeriod(t *testing.T) {
	m := NewManual(epoch)
	var fired []time.Time
	m.Every(2*time.Second, func() { fired = append(fired, m.Now()) })

	m.Advance(4100 * time.Millisecond)
	assert.Equal(t, []time.Time{epoch.Add(2 * time.Second), epoch.Add(4 * time.Second)}, fired)
	assert.Equal(t, epoch.Add(4100*time.Millisecond), m.Now())
}

func TestManual_AfterFiresOnce(t *testing.T) {
	m := NewManual(epoch)
	calls := 0
	m.After(time.Second, func() { calls++ })
	m.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, calls)
	m.Advance(5 * time.Second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_CancelStopsTimer(t *testing.T) {
	m := NewManual(epoch)
	calls := 0
	cancel := m.Every(time.Second, func() { calls++ })
	m.Advance(time.Second)
	cancel()
	cancel()
	m.Advance(10 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestManual_CallbackCanCancelAndArm(t *testing.T) {
	m := NewManual(epoch)
	var order []string
	var cancel func()
	cancel = m.Every(time.Second, func() {
		order = append(order, "tick")
		cancel()
		m.After(500*time.Millisecond, func() { order = append(order, "after") })
	})
	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"tick", "after"}, order)
}

func TestManual_DeadlineOrder(t *testing.T) {
	m := NewManual(epoch)
	var order []string
	m.After(300*time.Millisecond, func() { order = append(order, "c") })
	m.After(100*time.Millisecond, func() { order = append(order, "a") })
	m.After(200*time.Millisecond, func() { order = append(order, "b") })
	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRealScheduler_EveryAndCancel(t *testing.T) {
	s := NewScheduler()
	var calls atomic.Int32
	cancel := s.Every(5*time.Millisecond, func() { calls.Add(1) })
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	cancel()
	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), settled+1)
}

func TestRealScheduler_After(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})
	s.After(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("after callback did not run")
	}
}
