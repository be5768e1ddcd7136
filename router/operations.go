package router

import (
	"context"
	"sync/atomic"
	"time"
)

const TIMEOUT_PING = time.Millisecond * 299

// beep performs a task every interval until ctx ends.
func beep(ctx context.Context, interval time.Duration, task func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

// Health offers summarized data that can be read on the /health endpoint. No
// matter how often a caller hammers /health, the reply is a boolean read. The
// ping itself runs in the background.
type Health struct {
	Rdbms atomic.Bool
}

func (h *Health) PassFail() bool {
	return h.Rdbms.Load()
}

// PingDB records whether the session connection answers.
func (b *Backbone) PingDB(ctx context.Context) {
	if b.Pinger == nil {
		b.Health.Rdbms.Store(false)
		return
	}

	timer, cancel := context.WithTimeout(ctx, TIMEOUT_PING)
	defer cancel()

	b.mu.Lock()
	err := b.Pinger.Ping(timer)
	b.mu.Unlock()

	if err != nil {
		b.Health.Rdbms.Store(false)
		b.Logger.Error("Failed ping", "rdbms", err.Error())
		return
	}
	b.Health.Rdbms.Store(true)
}

// SetupHealthChecks pings once now and then every interval until ctx ends.
func (b *Backbone) SetupHealthChecks(ctx context.Context, interval time.Duration) {
	b.PingDB(ctx)
	if interval <= 0 {
		return
	}
	go beep(ctx, interval, func() { b.PingDB(ctx) })
}
