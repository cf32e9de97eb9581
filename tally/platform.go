// Package tally is the reconciliation core: it provisions counter channels,
// tears them down, and keeps their names in sync with live guild statistics.
package tally

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/guild-tally/backend/counter"
	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/gateway"
)

// ChannelRef is the platform-independent view of a channel the core needs.
type ChannelRef struct {
	ID         string
	Name       string
	CategoryID string
}

// Platform is the channel-management surface the core consumes. Lookups
// return a nil ref (with nil error) when the resource is absent, so callers
// can tell "gone" from "failed".
type Platform interface {
	FetchMembership(ctx context.Context, guildID string) ([]counter.Member, error)
	FindCategory(ctx context.Context, guildID, name string) (*ChannelRef, error)
	CreateCategory(ctx context.Context, guildID, name string) (*ChannelRef, error)
	CreateVoiceChannel(ctx context.Context, guildID, name, categoryID string) (*ChannelRef, error)
	GetChannel(ctx context.Context, channelID string) (*ChannelRef, error)
	RenameChannel(ctx context.Context, channelID, name string) error
	DeleteChannel(ctx context.Context, channelID string) error
	ChildCount(ctx context.Context, guildID, categoryID string) (int, error)
}

// DiscordPlatform implements Platform over the REST client, merging gateway
// presence state into membership snapshots.
type DiscordPlatform struct {
	Client    *discordapi.Client
	Presences *gateway.PresenceCache
}

var _ Platform = (*DiscordPlatform)(nil)

func channelRef(ch *discordapi.Channel) *ChannelRef {
	if ch == nil {
		return nil
	}
	return &ChannelRef{ID: ch.ID, Name: ch.Name, CategoryID: ch.ParentID}
}

// FetchMembership lists the guild's members and annotates each with its
// cached presence. Members without a cache entry read as offline.
func (p *DiscordPlatform) FetchMembership(ctx context.Context, guildID string) ([]counter.Member, error) {
	raw, err := p.Client.ListGuildMembers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	members := make([]counter.Member, 0, len(raw))
	for _, m := range raw {
		member := counter.Member{
			ID:  m.User.ID,
			Bot: m.User.Bot,
			// Discord's role list excludes @everyone; count it back in so
			// "more than one role" means one beyond the base role.
			RoleCount: len(m.Roles) + 1,
		}
		if p.Presences != nil {
			member.Presence = p.Presences.Get(guildID, m.User.ID)
		}
		members = append(members, member)
	}
	return members, nil
}

func (p *DiscordPlatform) FindCategory(ctx context.Context, guildID, name string) (*ChannelRef, error) {
	ch, err := p.Client.FindCategory(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	return channelRef(ch), nil
}

func (p *DiscordPlatform) CreateCategory(ctx context.Context, guildID, name string) (*ChannelRef, error) {
	ch, err := p.Client.CreateCategory(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	return channelRef(ch), nil
}

func (p *DiscordPlatform) CreateVoiceChannel(ctx context.Context, guildID, name, categoryID string) (*ChannelRef, error) {
	ch, err := p.Client.CreateVoiceChannel(ctx, guildID, name, categoryID)
	if err != nil {
		return nil, err
	}
	return channelRef(ch), nil
}

// GetChannel maps the API's 404 to an absent ref.
func (p *DiscordPlatform) GetChannel(ctx context.Context, channelID string) (*ChannelRef, error) {
	ch, err := p.Client.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, discordapi.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return channelRef(ch), nil
}

func (p *DiscordPlatform) RenameChannel(ctx context.Context, channelID, name string) error {
	return p.Client.RenameChannel(ctx, channelID, name)
}

func (p *DiscordPlatform) DeleteChannel(ctx context.Context, channelID string) error {
	return p.Client.DeleteChannel(ctx, channelID)
}

func (p *DiscordPlatform) ChildCount(ctx context.Context, guildID, categoryID string) (int, error) {
	return p.Client.ChildCount(ctx, guildID, categoryID)
}

// GuildLabel resolves a guild's display name for snapshot labels. It is
// best-effort: any failure yields "Unknown" rather than blocking a save.
func (p *DiscordPlatform) GuildLabel(guildID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g, err := p.Client.GetGuild(ctx, guildID)
	if err != nil {
		return "Unknown"
	}
	return g.Name
}
