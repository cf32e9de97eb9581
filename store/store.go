// Package store holds the in-memory index of provisioned counters and its
// durable JSON snapshot. The store is the source of truth for what the bot
// manages; the guild's actual channel list is not.
package store

import (
	"sort"
	"sync"

	"github.com/onnwee/guild-tally/backend/counter"
)

// CounterConfig records one provisioned counter channel. Configs are never
// mutated in place; the channel's displayed name is the only mutable
// projection derived from one.
type CounterConfig struct {
	ChannelID  string       `json:"channel_id"`
	Kind       counter.Kind `json:"kind"`
	CategoryID string       `json:"category_id"`
}

// Store maps guild IDs to their counter configs, preserving insertion order
// per guild. All background jobs share one Store; access is mutex-guarded.
type Store struct {
	mu     sync.RWMutex
	guilds map[string][]CounterConfig
}

func New() *Store {
	return &Store{guilds: make(map[string][]CounterConfig)}
}

// Get returns a copy of the guild's configs. A guild with no entry and a
// guild with an empty slice both return a nil/empty result; callers must
// treat either as "no counters".
func (s *Store) Get(guildID string) []CounterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	configs := s.guilds[guildID]
	if len(configs) == 0 {
		return nil
	}
	out := make([]CounterConfig, len(configs))
	copy(out, configs)
	return out
}

// Add appends a config for the guild, creating the guild entry if absent.
func (s *Store) Add(guildID string, cfg CounterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds[guildID] = append(s.guilds[guildID], cfg)
}

// Clear removes the guild's entry entirely and reports whether it existed
// with at least one config.
func (s *Store) Clear(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs, ok := s.guilds[guildID]
	delete(s.guilds, guildID)
	return ok && len(configs) > 0
}

// GuildIDs returns the IDs of guilds holding at least one config, sorted for
// deterministic sweep order.
func (s *Store) GuildIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.guilds))
	for id, configs := range s.guilds {
		if len(configs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AllEntries returns a copy of every (guildID, configs) pair with at least
// one config.
func (s *Store) AllEntries() map[string][]CounterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]CounterConfig, len(s.guilds))
	for id, configs := range s.guilds {
		if len(configs) == 0 {
			continue
		}
		cp := make([]CounterConfig, len(configs))
		copy(cp, configs)
		out[id] = cp
	}
	return out
}

// Counts returns the number of guilds with counters and the total number of
// counters, for status reporting and gauges.
func (s *Store) Counts() (guilds, counters int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, configs := range s.guilds {
		if len(configs) == 0 {
			continue
		}
		guilds++
		counters += len(configs)
	}
	return guilds, counters
}
