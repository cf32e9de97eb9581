package discordapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/onnwee/guild-tally/backend/counter"
)

// Slash command names; the schema below is static.
const (
	CmdSetup = "counter-setup"
	CmdTypes = "counter-types"
	CmdReset = "counter-reset"
)

// Application command option types (Discord constants).
const optionTypeString = 3

// CommandOptionChoice is one selectable value of a choice option.
type CommandOptionChoice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CommandOption is one option of an application command.
type CommandOption struct {
	Type        int                   `json:"type"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Required    bool                  `json:"required,omitempty"`
	Choices     []CommandOptionChoice `json:"choices,omitempty"`
}

// ApplicationCommand is the registration payload for one slash command.
// DefaultMemberPermissions is a stringified permission bitset gating who
// sees and can invoke the command.
type ApplicationCommand struct {
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Options                  []CommandOption `json:"options,omitempty"`
	DefaultMemberPermissions string          `json:"default_member_permissions,omitempty"`
}

// Commands returns the bot's full, fixed command schema.
func Commands() []ApplicationCommand {
	choices := make([]CommandOptionChoice, 0, len(counter.Kinds))
	for _, k := range counter.Kinds {
		choices = append(choices, CommandOptionChoice{Name: k.Label(), Value: string(k)})
	}
	return []ApplicationCommand{
		{
			Name:        CmdSetup,
			Description: "Create a live counter channel",
			Options: []CommandOption{
				{
					Type:        optionTypeString,
					Name:        "type",
					Description: "Statistic the channel displays",
					Required:    true,
					Choices:     choices,
				},
				{
					Type:        optionTypeString,
					Name:        "category",
					Description: "Category to create the counter under",
					Required:    true,
				},
			},
			DefaultMemberPermissions: strconv.Itoa(PermManageChannels),
		},
		{
			Name:        CmdTypes,
			Description: "List available counter types",
		},
		{
			Name:                     CmdReset,
			Description:              "Remove every counter channel in this server",
			DefaultMemberPermissions: strconv.Itoa(PermAdministrator),
		},
	}
}

// RegisterCommands bulk-overwrites the application's global commands with
// the fixed schema. Called once at startup.
func (c *Client) RegisterCommands(ctx context.Context) error {
	if c.AppID == "" {
		return fmt.Errorf("app id empty")
	}
	return c.do(ctx, http.MethodPut, "/applications/"+c.AppID+"/commands", Commands(), nil)
}
