package store

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/onnwee/guild-tally/backend/telemetry"
)

// PersistInterval returns how often the periodic flush runs. The interval is
// deliberately decoupled from the sweep interval so persistence cost does
// not scale with sweep frequency.
//
// Env knob: PERSIST_INTERVAL (default 10m).
func PersistInterval() time.Duration {
	interval := 10 * time.Minute
	if v := os.Getenv("PERSIST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	return interval
}

// StartPersistJob periodically flushes the store snapshot to disk and writes
// it once more on shutdown. A failed save is logged and retried on the next
// tick; it never stops the job.
func StartPersistJob(ctx context.Context, s *Store, path string, labelFn LabelFunc) {
	interval := PersistInterval()
	slog.Info("persist job starting", slog.String("path", path), slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final synchronous flush so a graceful shutdown never loses
			// provisioning done since the last tick.
			saveSnapshot(s, path, labelFn)
			slog.Info("persist job stopped", slog.String("path", path))
			return
		case <-ticker.C:
			saveSnapshot(s, path, labelFn)
		}
	}
}

func saveSnapshot(s *Store, path string, labelFn LabelFunc) {
	if err := s.Save(path, labelFn); err != nil {
		telemetry.SnapshotSaveFailed()
		slog.Warn("snapshot save failed", slog.String("path", path), slog.Any("err", err))
		return
	}
	telemetry.SnapshotSaved()
	slog.Debug("snapshot saved", slog.String("path", path))
}
