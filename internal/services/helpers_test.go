package services

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// fakeClock is a settable UTC clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions(clock *fakeClock) Options {
	return Options{Hasher: NewBcryptHasher(bcrypt.MinCost), Now: clock.Now}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
