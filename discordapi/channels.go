package discordapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Channel types used by this bot.
const (
	ChannelTypeVoice    = 2
	ChannelTypeCategory = 4
)

// Channel is the subset of channel fields the bot reads.
type Channel struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id,omitempty"`
	Type     int    `json:"type"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// PermissionOverwrite grants or denies permission bits for a role or member.
// Allow and Deny are stringified bitsets, as Discord serializes them.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"` // 0 = role, 1 = member
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

// denyConnectEveryone builds the overwrite that keeps counter channels
// display-only: the @everyone role (whose ID equals the guild ID) is denied
// CONNECT.
func denyConnectEveryone(guildID string) []PermissionOverwrite {
	return []PermissionOverwrite{{
		ID:    guildID,
		Type:  0,
		Allow: "0",
		Deny:  strconv.Itoa(PermConnect),
	}}
}

type createChannelRequest struct {
	Name                 string                `json:"name"`
	Type                 int                   `json:"type"`
	ParentID             string                `json:"parent_id,omitempty"`
	PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites,omitempty"`
}

// ListGuildChannels returns every channel in the guild.
func (c *Client) ListGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guildID empty")
	}
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// FindCategory returns the category whose name matches exactly
// (case-sensitive), or nil when none exists.
func (c *Client) FindCategory(ctx context.Context, guildID, name string) (*Channel, error) {
	channels, err := c.ListGuildChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		if channels[i].Type == ChannelTypeCategory && channels[i].Name == name {
			return &channels[i], nil
		}
	}
	return nil, nil
}

// CreateCategory creates a category with CONNECT denied for @everyone.
func (c *Client) CreateCategory(ctx context.Context, guildID, name string) (*Channel, error) {
	req := createChannelRequest{
		Name:                 name,
		Type:                 ChannelTypeCategory,
		PermissionOverwrites: denyConnectEveryone(guildID),
	}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateVoiceChannel creates a voice channel under the category, with the
// same CONNECT deny so members see the name but cannot join.
func (c *Client) CreateVoiceChannel(ctx context.Context, guildID, name, parentID string) (*Channel, error) {
	req := createChannelRequest{
		Name:                 name,
		Type:                 ChannelTypeVoice,
		ParentID:             parentID,
		PermissionOverwrites: denyConnectEveryone(guildID),
	}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChannel fetches one channel; ErrNotFound when it no longer exists.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channelID empty")
	}
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// RenameChannel updates only the channel's name.
func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	body := struct {
		Name string `json:"name"`
	}{Name: name}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, body, nil)
}

// DeleteChannel removes a channel or category.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
}

// ChildCount reports how many channels list the category as parent.
func (c *Client) ChildCount(ctx context.Context, guildID, categoryID string) (int, error) {
	channels, err := c.ListGuildChannels(ctx, guildID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ch := range channels {
		if ch.ParentID == categoryID {
			n++
		}
	}
	return n, nil
}
