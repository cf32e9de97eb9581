package tally

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/guild-tally/backend/counter"
	"github.com/onnwee/guild-tally/backend/store"
	"github.com/onnwee/guild-tally/backend/telemetry"
)

// Service owns the provisioning and reconciliation operations. The store is
// injected at startup and is the single source of truth for what the bot
// manages.
type Service struct {
	Store        *store.Store
	Platform     Platform
	SnapshotPath string
	LabelFn      store.LabelFunc
}

func NewService(s *store.Store, p Platform, snapshotPath string, labelFn store.LabelFunc) *Service {
	return &Service{Store: s, Platform: p, SnapshotPath: snapshotPath, LabelFn: labelFn}
}

// persist writes the snapshot immediately after a store mutation so that a
// crash between persistence ticks cannot lose a provisioning or teardown.
func (s *Service) persist() {
	if err := s.Store.Save(s.SnapshotPath, s.LabelFn); err != nil {
		telemetry.SnapshotSaveFailed()
		slog.Warn("snapshot save failed", slog.String("path", s.SnapshotPath), slog.Any("err", err))
		return
	}
	telemetry.SnapshotSaved()
	telemetry.SetStoreSize(s.Store.Counts())
}

// SetUp provisions one counter: find-or-create the category, create the
// counter channel with its current value as name, then record and persist
// the config. Any external failure aborts before the store is touched; the
// caller reports it and must not retry automatically.
func (s *Service) SetUp(ctx context.Context, guildID string, kind counter.Kind, categoryName string) (store.CounterConfig, error) {
	ctx, span := telemetry.StartSpan(ctx, "tally", "setup",
		attribute.String("guild_id", guildID), attribute.String("kind", string(kind)))
	defer span.End()

	category, err := s.Platform.FindCategory(ctx, guildID, categoryName)
	if err != nil {
		telemetry.RecordError(span, err)
		return store.CounterConfig{}, fmt.Errorf("find category %q: %w", categoryName, err)
	}
	if category == nil {
		category, err = s.Platform.CreateCategory(ctx, guildID, categoryName)
		if err != nil {
			telemetry.RecordError(span, err)
			return store.CounterConfig{}, fmt.Errorf("create category %q: %w", categoryName, err)
		}
		slog.Info("created counter category",
			slog.String("guild_id", guildID), slog.String("category_id", category.ID), slog.String("name", categoryName))
	}

	members, err := s.Platform.FetchMembership(ctx, guildID)
	if err != nil {
		telemetry.RecordError(span, err)
		return store.CounterConfig{}, fmt.Errorf("fetch membership: %w", err)
	}
	name := counter.ChannelName(kind, counter.Evaluate(kind, members))

	// Always a fresh channel; channel ID uniqueness in the store follows
	// from never reusing one.
	ch, err := s.Platform.CreateVoiceChannel(ctx, guildID, name, category.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return store.CounterConfig{}, fmt.Errorf("create channel %q: %w", name, err)
	}

	cfg := store.CounterConfig{ChannelID: ch.ID, Kind: kind, CategoryID: category.ID}
	s.Store.Add(guildID, cfg)
	s.persist()

	slog.Info("counter provisioned",
		slog.String("guild_id", guildID),
		slog.String("channel_id", ch.ID),
		slog.String("kind", string(kind)),
		slog.String("name", name))
	return cfg, nil
}

// TearDownResult summarizes one teardown pass.
type TearDownResult struct {
	Deleted int
	Failed  int
}

// TearDown removes every counter the store holds for the guild. Individual
// deletion failures are counted and do not stop the pass; the store entry
// is cleared unconditionally afterwards so it never references channels the
// operator believes are gone.
func (s *Service) TearDown(ctx context.Context, guildID string) (TearDownResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "tally", "teardown", attribute.String("guild_id", guildID))
	defer span.End()

	var res TearDownResult
	configs := s.Store.Get(guildID)
	if len(configs) == 0 {
		return res, nil
	}
	log := slog.Default().With(slog.String("guild_id", guildID))

	for _, cfg := range configs {
		ch, err := s.Platform.GetChannel(ctx, cfg.ChannelID)
		switch {
		case err != nil:
			res.Failed++
			log.Warn("teardown channel lookup failed", slog.String("channel_id", cfg.ChannelID), slog.Any("err", err))
		case ch == nil:
			// Already gone; nothing to delete.
		default:
			if err := s.Platform.DeleteChannel(ctx, cfg.ChannelID); err != nil {
				res.Failed++
				log.Warn("teardown channel delete failed", slog.String("channel_id", cfg.ChannelID), slog.Any("err", err))
			} else {
				res.Deleted++
			}
		}
		s.deleteCategoryIfEmpty(ctx, guildID, cfg.CategoryID, log)
	}

	s.Store.Clear(guildID)
	s.persist()

	log.Info("counters torn down", slog.Int("deleted", res.Deleted), slog.Int("failed", res.Failed))
	return res, nil
}

// deleteCategoryIfEmpty removes the config's category when it still exists
// and has no remaining children. Failures here are logged only; the counter
// channel is what teardown accounts for.
func (s *Service) deleteCategoryIfEmpty(ctx context.Context, guildID, categoryID string, log *slog.Logger) {
	if categoryID == "" {
		return
	}
	cat, err := s.Platform.GetChannel(ctx, categoryID)
	if err != nil || cat == nil {
		return
	}
	n, err := s.Platform.ChildCount(ctx, guildID, categoryID)
	if err != nil || n > 0 {
		return
	}
	if err := s.Platform.DeleteChannel(ctx, categoryID); err != nil {
		log.Warn("teardown category delete failed", slog.String("category_id", categoryID), slog.Any("err", err))
	}
}
