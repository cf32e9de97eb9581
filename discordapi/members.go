package discordapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// memberPageLimit is Discord's maximum page size for the members endpoint.
const memberPageLimit = 1000

// User is the subset of user fields the bot reads.
type User struct {
	ID  string `json:"id"`
	Bot bool   `json:"bot"`
}

// GuildMember is one entry of a guild member listing. Roles excludes the
// implicit @everyone role.
type GuildMember struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// ListGuildMembers pages through the full member list. The REST listing
// carries no presence data; presence comes from the gateway cache and is
// merged by the caller.
func (c *Client) ListGuildMembers(ctx context.Context, guildID string) ([]GuildMember, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guildID empty")
	}
	var out []GuildMember
	after := ""
	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprintf("%d", memberPageLimit))
		if after != "" {
			q.Set("after", after)
		}
		var page []GuildMember
		if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < memberPageLimit {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}
