package gateway

import (
	"sync"

	"github.com/onnwee/guild-tally/backend/counter"
)

// PresenceCache holds the last known presence status per guild member. The
// REST member listing carries no presence data, so reconciliation merges
// this cache into membership snapshots. A user absent from the cache counts
// as offline everywhere.
type PresenceCache struct {
	mu     sync.RWMutex
	guilds map[string]map[string]counter.PresenceStatus
}

func NewPresenceCache() *PresenceCache {
	return &PresenceCache{guilds: make(map[string]map[string]counter.PresenceStatus)}
}

// Set records a member's status. An "offline" status removes the entry so
// the cache only grows with currently-present members.
func (p *PresenceCache) Set(guildID, userID string, status counter.PresenceStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == counter.PresenceOffline || status == "" {
		delete(p.guilds[guildID], userID)
		return
	}
	if p.guilds[guildID] == nil {
		p.guilds[guildID] = make(map[string]counter.PresenceStatus)
	}
	p.guilds[guildID][userID] = status
}

// Get returns the member's status, or empty when no record exists.
func (p *PresenceCache) Get(guildID, userID string) counter.PresenceStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.guilds[guildID][userID]
}

// DropGuild forgets all presence state for a guild.
func (p *PresenceCache) DropGuild(guildID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.guilds, guildID)
}
