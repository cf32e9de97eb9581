// Package commands maps inbound slash command interactions onto counter
// operations and produces the interaction responses.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/guild-tally/backend/counter"
	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/tally"
)

// Handler dispatches interactions. Every invocation gets exactly one
// response; errors become ephemeral messages telling the invoker what
// to fix rather than opaque failures.
type Handler struct {
	Svc *tally.Service
}

func NewHandler(svc *tally.Service) *Handler {
	return &Handler{Svc: svc}
}

// Handle produces the response for one interaction. Pings are answered
// with pongs; unknown commands and types get an ephemeral explanation.
func (h *Handler) Handle(ctx context.Context, in *discordapi.Interaction) discordapi.InteractionResponse {
	if in.Type == discordapi.InteractionPing {
		return discordapi.InteractionResponse{Type: discordapi.CallbackPong}
	}
	if in.Type != discordapi.InteractionApplicationCommand || in.Data == nil {
		return ephemeral("Unsupported interaction.")
	}

	log := slog.Default().With(
		slog.String("command", in.Data.Name),
		slog.String("guild_id", in.GuildID))

	switch in.Data.Name {
	case discordapi.CmdSetup:
		return h.handleSetup(ctx, in, log)
	case discordapi.CmdTypes:
		return h.handleTypes()
	case discordapi.CmdReset:
		return h.handleReset(ctx, in, log)
	default:
		log.Warn("unknown command")
		return ephemeral(fmt.Sprintf("Unknown command %q.", in.Data.Name))
	}
}

func (h *Handler) handleSetup(ctx context.Context, in *discordapi.Interaction, log *slog.Logger) discordapi.InteractionResponse {
	if in.GuildID == "" {
		return ephemeral("This command only works inside a server.")
	}
	if !in.HasPermission(discordapi.PermManageChannels) {
		return ephemeral("You need the Manage Channels permission to set up counters.")
	}

	kind, ok := counter.ParseKind(in.Option("type"))
	if !ok {
		return ephemeral(fmt.Sprintf("Unknown counter type %q. Run /%s to see the available types.",
			in.Option("type"), discordapi.CmdTypes))
	}
	category := strings.TrimSpace(in.Option("category"))
	if category == "" {
		return ephemeral("Category name cannot be empty.")
	}

	cfg, err := h.Svc.SetUp(ctx, in.GuildID, kind, category)
	if err != nil {
		log.Error("counter setup failed", slog.Any("err", err))
		return ephemeral("Counter setup failed. Check that the bot can manage channels in this server and try again.")
	}

	log.Info("counter setup via command", slog.String("channel_id", cfg.ChannelID))
	return message(fmt.Sprintf("Created a **%s** counter under **%s**.", kind.Label(), category))
}

func (h *Handler) handleTypes() discordapi.InteractionResponse {
	var b strings.Builder
	b.WriteString("Available counter types:\n")
	for _, k := range counter.Kinds {
		fmt.Fprintf(&b, "• `%s` (%s)\n", k, k.Label())
	}
	return message(b.String())
}

func (h *Handler) handleReset(ctx context.Context, in *discordapi.Interaction, log *slog.Logger) discordapi.InteractionResponse {
	if in.GuildID == "" {
		return ephemeral("This command only works inside a server.")
	}
	if !in.HasPermission(discordapi.PermAdministrator) {
		return ephemeral("You need the Administrator permission to reset counters.")
	}

	res, err := h.Svc.TearDown(ctx, in.GuildID)
	if err != nil {
		log.Error("counter reset failed", slog.Any("err", err))
		return ephemeral("Counter reset failed. Try again in a moment.")
	}
	if res.Deleted == 0 && res.Failed == 0 {
		return ephemeral("No counters are set up in this server.")
	}

	log.Info("counters reset via command", slog.Int("deleted", res.Deleted), slog.Int("failed", res.Failed))
	content := fmt.Sprintf("Removed %d counter channel(s).", res.Deleted)
	if res.Failed > 0 {
		content += fmt.Sprintf(" %d could not be deleted; check the bot's permissions and remove them by hand.", res.Failed)
	}
	return message(content)
}

func message(content string) discordapi.InteractionResponse {
	return discordapi.InteractionResponse{
		Type: discordapi.CallbackChannelMessageSource,
		Data: &discordapi.InteractionResponseData{Content: content},
	}
}

func ephemeral(content string) discordapi.InteractionResponse {
	return discordapi.InteractionResponse{
		Type: discordapi.CallbackChannelMessageSource,
		Data: &discordapi.InteractionResponseData{Content: content, Flags: discordapi.FlagEphemeral},
	}
}
