package tally

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/guild-tally/backend/counter"
	"github.com/onnwee/guild-tally/backend/telemetry"
)

// ReconcileGuild recomputes every counter in the guild and renames only the
// channels whose name drifted. A channel deleted out-of-band is skipped,
// never pruned: the store is only mutated by provisioning and teardown.
// Per-channel failures are logged and isolated; the next sweep retries.
func (s *Service) ReconcileGuild(ctx context.Context, guildID string) {
	configs := s.Store.Get(guildID)
	if len(configs) == 0 {
		return
	}
	ctx, span := telemetry.StartSpan(ctx, "tally", "reconcile_guild",
		attribute.String("guild_id", guildID), attribute.Int("configs", len(configs)))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("guild_id", guildID))

	// One fresh snapshot per invocation; never cached across invocations.
	members, err := s.Platform.FetchMembership(ctx, guildID)
	if err != nil {
		telemetry.Inc(telemetry.ReconcileErrors)
		telemetry.RecordError(span, err)
		log.Warn("membership fetch failed", slog.Any("err", err))
		return
	}

	for _, cfg := range configs {
		ch, err := s.Platform.GetChannel(ctx, cfg.ChannelID)
		if err != nil {
			telemetry.Inc(telemetry.ReconcileErrors)
			log.Warn("channel lookup failed", slog.String("channel_id", cfg.ChannelID), slog.Any("err", err))
			continue
		}
		if ch == nil {
			telemetry.Inc(telemetry.ChannelsMissing)
			log.Debug("channel missing, skipping", slog.String("channel_id", cfg.ChannelID))
			continue
		}
		target := counter.ChannelName(cfg.Kind, counter.Evaluate(cfg.Kind, members))
		if ch.Name == target {
			telemetry.Inc(telemetry.RenameSkips)
			continue
		}
		if err := s.Platform.RenameChannel(ctx, cfg.ChannelID, target); err != nil {
			telemetry.Inc(telemetry.ReconcileErrors)
			log.Warn("rename failed",
				slog.String("channel_id", cfg.ChannelID),
				slog.String("target", target),
				slog.Any("err", err))
			continue
		}
		telemetry.Inc(telemetry.RenamesTotal)
		log.Info("counter renamed",
			slog.String("channel_id", cfg.ChannelID),
			slog.String("from", ch.Name),
			slog.String("to", target))
	}
}

// SweepInterval returns how often the full sweep runs.
//
// Env knob: SWEEP_INTERVAL (default 5m).
func SweepInterval() time.Duration {
	interval := 5 * time.Minute
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	return interval
}

// StartSweepJob runs the periodic full sweep: every guild in the store gets
// reconciled, with per-guild isolation. The first sweep runs immediately.
func (s *Service) StartSweepJob(ctx context.Context) {
	interval := SweepInterval()
	slog.Info("sweep job starting", slog.Duration("interval", interval))

	s.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweep job stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	telemetry.Inc(telemetry.SweepsTotal)
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	guilds := s.Store.GuildIDs()
	d := telemetry.TimeFunc(telemetry.SweepDuration, func() {
		for _, guildID := range guilds {
			if ctx.Err() != nil {
				return
			}
			s.ReconcileGuild(ctx, guildID)
		}
	})
	telemetry.SetStoreSize(s.Store.Counts())
	telemetry.LoggerWithCorr(ctx).Debug("sweep completed", slog.Int("guilds", len(guilds)), slog.Duration("took", d))
}
