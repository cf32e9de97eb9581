package tally

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/onnwee/guild-tally/backend/telemetry"
)

// DebounceDelay returns how long an event-triggered reconcile waits, to
// absorb bursts of membership and presence events.
//
// Env knob: DEBOUNCE_DELAY (default 1s).
func DebounceDelay() time.Duration {
	delay := time.Second
	if v := os.Getenv("DEBOUNCE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			delay = d
		}
	}
	return delay
}

// Debouncer schedules a partial sweep for a guild shortly after a
// triggering event. Triggers for the same guild inside the delay window
// coalesce into one pending run. A run that fires after the guild was torn
// down reconciles an empty config set, which is a no-op.
type Debouncer struct {
	svc   *Service
	ctx   context.Context
	delay time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewDebouncer binds the debouncer to the process lifetime context; fires
// scheduled after cancellation are dropped.
func NewDebouncer(ctx context.Context, svc *Service) *Debouncer {
	return &Debouncer{
		svc:     svc,
		ctx:     ctx,
		delay:   DebounceDelay(),
		pending: make(map[string]struct{}),
	}
}

// Trigger schedules a reconcile for the guild. Safe to call from the
// gateway's event goroutine; it never blocks.
func (d *Debouncer) Trigger(guildID string) {
	if guildID == "" || d.ctx.Err() != nil {
		return
	}
	telemetry.Inc(telemetry.DebounceTriggers)

	d.mu.Lock()
	if _, ok := d.pending[guildID]; ok {
		d.mu.Unlock()
		return
	}
	d.pending[guildID] = struct{}{}
	d.mu.Unlock()

	time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.pending, guildID)
		d.mu.Unlock()
		if d.ctx.Err() != nil {
			return
		}
		slog.Debug("debounced reconcile firing", slog.String("guild_id", guildID))
		d.svc.ReconcileGuild(d.ctx, guildID)
	})
}
