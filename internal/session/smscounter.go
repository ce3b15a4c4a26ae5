// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"

	"github.com/solanagram/solanagram/models"
)

// SMSCounter tracks how many login codes were requested per phone inside the
// reset window, so the platform throttles itself before Telegram does. A
// FloodWait from Telegram snaps the counter to its limit with the reset time
// set to the cool-down expiry.
type SMSCounter interface {
	Status(ctx context.Context, phone string) (models.SMSCounterStatus, error)
	Increment(ctx context.Context, phone string) (models.SMSCounterStatus, error)
	SyncFloodWait(ctx context.Context, phone string, retryAfter time.Duration) error
	Reset(ctx context.Context, phone string) error
}

type smsWindow struct {
	count   int
	resetAt time.Time
}

// memorySMSCounter is the Redis-free fallback counter.
type memorySMSCounter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*smsWindow
}

// NewMemorySMSCounter constructs the in-process SMS counter with the given
// per-window budget.
func NewMemorySMSCounter(limit int, window time.Duration) SMSCounter {
	return &memorySMSCounter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*smsWindow),
	}
}

func (c *memorySMSCounter) get(phone string) *smsWindow {
	w, ok := c.windows[phone]
	if !ok || (!w.resetAt.IsZero() && c.now().After(w.resetAt)) {
		w = &smsWindow{}
		c.windows[phone] = w
	}
	return w
}

func (c *memorySMSCounter) status(w *smsWindow) models.SMSCounterStatus {
	remaining := c.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	st := models.SMSCounterStatus{
		Count:     w.count,
		Limit:     c.limit,
		Remaining: remaining,
	}
	if !w.resetAt.IsZero() {
		st.ResetTime = w.resetAt.Unix()
	}
	return st
}

func (c *memorySMSCounter) Status(_ context.Context, phone string) (models.SMSCounterStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status(c.get(phone)), nil
}

func (c *memorySMSCounter) Increment(_ context.Context, phone string) (models.SMSCounterStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.get(phone)
	w.count++
	if w.resetAt.IsZero() {
		w.resetAt = c.now().Add(c.window)
	}
	return c.status(w), nil
}

func (c *memorySMSCounter) SyncFloodWait(_ context.Context, phone string, retryAfter time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windows[phone] = &smsWindow{
		count:   c.limit,
		resetAt: c.now().Add(retryAfter),
	}
	return nil
}

func (c *memorySMSCounter) Reset(_ context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.windows, phone)
	return nil
}
