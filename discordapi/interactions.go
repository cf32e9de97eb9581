package discordapi

import "strconv"

// Interaction types (Discord constants).
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
)

// Interaction callback types.
const (
	CallbackPong                 = 1
	CallbackChannelMessageSource = 4
)

// Message flags.
const FlagEphemeral = 1 << 6

// InteractionOption is one supplied option value of a command invocation.
type InteractionOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InteractionData is the command portion of an interaction.
type InteractionData struct {
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options"`
}

// InteractionMember is the invoking guild member; Permissions is the
// member's computed permission bitset in the invoking channel.
type InteractionMember struct {
	Permissions string `json:"permissions"`
}

// Interaction is the inbound webhook payload for pings and slash commands.
type Interaction struct {
	ID      string             `json:"id"`
	Type    int                `json:"type"`
	Token   string             `json:"token"`
	GuildID string             `json:"guild_id"`
	Data    *InteractionData   `json:"data,omitempty"`
	Member  *InteractionMember `json:"member,omitempty"`
}

// Option returns the named option value, or "".
func (i *Interaction) Option(name string) string {
	if i.Data == nil {
		return ""
	}
	for _, o := range i.Data.Options {
		if o.Name == name {
			return o.Value
		}
	}
	return ""
}

// HasPermission reports whether the invoking member's permission bitset
// includes the bit (administrators implicitly hold everything).
func (i *Interaction) HasPermission(bit int64) bool {
	if i.Member == nil {
		return false
	}
	perms, err := strconv.ParseInt(i.Member.Permissions, 10, 64)
	if err != nil {
		return false
	}
	if perms&PermAdministrator != 0 {
		return true
	}
	return perms&bit != 0
}

// InteractionResponseData is the message body of a callback.
type InteractionResponseData struct {
	Content string `json:"content,omitempty"`
	Flags   int    `json:"flags,omitempty"`
}

// InteractionResponse is the webhook reply payload.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}
