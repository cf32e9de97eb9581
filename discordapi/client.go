// Package discordapi contains minimal helpers to interact with the Discord
// REST API for guild channel management, membership listing, and slash
// command registration, using a bot token.
package discordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// ErrNotFound is returned when Discord reports 404 for the requested
// resource, letting callers distinguish "channel gone" from a real failure.
var ErrNotFound = errors.New("discord: not found")

// Permission bits used by this bot.
const (
	PermAdministrator  = 1 << 3
	PermManageChannels = 1 << 4
	PermConnect        = 1 << 20
)

// Client provides the REST surface the bot needs. Zero-value fields fall
// back to defaults; BaseURL is overridable for tests.
type Client struct {
	Token      string
	AppID      string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

// do performs one authenticated JSON request. A nil out discards the
// response body; 404 maps to ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Guild is the subset of guild fields the bot reads.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetGuild fetches a guild, primarily to resolve its display name for
// snapshot labels.
func (c *Client) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guildID empty")
	}
	var g Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
