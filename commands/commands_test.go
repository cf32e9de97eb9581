package commands

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/store"
	"github.com/onnwee/guild-tally/backend/tally"
	"github.com/onnwee/guild-tally/backend/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.FakeDiscord, *store.Store) {
	t.Helper()
	f := testutil.NewFakeDiscord(t)
	s := store.New()
	platform := &tally.DiscordPlatform{Client: f.Client()}
	svc := tally.NewService(s, platform, filepath.Join(t.TempDir(), "counters.json"), nil)
	return NewHandler(svc), f, s
}

func member(perms int64) *discordapi.InteractionMember {
	return &discordapi.InteractionMember{Permissions: strconv.FormatInt(perms, 10)}
}

func command(name, guildID string, m *discordapi.InteractionMember, opts ...discordapi.InteractionOption) *discordapi.Interaction {
	return &discordapi.Interaction{
		Type:    discordapi.InteractionApplicationCommand,
		GuildID: guildID,
		Data:    &discordapi.InteractionData{Name: name, Options: opts},
		Member:  m,
	}
}

func TestHandlePing(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), &discordapi.Interaction{Type: discordapi.InteractionPing})
	if resp.Type != discordapi.CallbackPong {
		t.Errorf("ping response type = %d, want %d", resp.Type, discordapi.CallbackPong)
	}
}

func TestHandleSetup(t *testing.T) {
	h, f, s := newTestHandler(t)
	f.AddGuild("g1", "Guild One")
	f.SetMembers("g1", []discordapi.GuildMember{
		{User: discordapi.User{ID: "u1"}},
		{User: discordapi.User{ID: "u2"}},
		{User: discordapi.User{ID: "b1", Bot: true}},
	})

	resp := h.Handle(context.Background(), command(discordapi.CmdSetup, "g1", member(discordapi.PermManageChannels),
		discordapi.InteractionOption{Name: "type", Value: "members"},
		discordapi.InteractionOption{Name: "category", Value: "Stats"},
	))
	if resp.Type != discordapi.CallbackChannelMessageSource {
		t.Fatalf("response type = %d", resp.Type)
	}
	if resp.Data.Flags&discordapi.FlagEphemeral != 0 {
		t.Errorf("success response should not be ephemeral: %q", resp.Data.Content)
	}
	if configs := s.Get("g1"); len(configs) != 1 {
		t.Errorf("store holds %d configs, want 1", len(configs))
	}
	for _, ch := range f.Channels {
		if ch.Type == discordapi.ChannelTypeVoice && ch.Name != "Total Members: 2" {
			t.Errorf("counter channel named %q, want %q", ch.Name, "Total Members: 2")
		}
	}
}

func TestHandleSetupPermissionDenied(t *testing.T) {
	h, _, s := newTestHandler(t)
	resp := h.Handle(context.Background(), command(discordapi.CmdSetup, "g1", member(0),
		discordapi.InteractionOption{Name: "type", Value: "members"},
		discordapi.InteractionOption{Name: "category", Value: "Stats"},
	))
	if resp.Data == nil || resp.Data.Flags&discordapi.FlagEphemeral == 0 {
		t.Fatal("expected ephemeral denial")
	}
	if !strings.Contains(resp.Data.Content, "Manage Channels") {
		t.Errorf("denial does not name the missing permission: %q", resp.Data.Content)
	}
	if s.Get("g1") != nil {
		t.Error("store mutated despite denial")
	}
}

func TestHandleSetupUnknownType(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), command(discordapi.CmdSetup, "g1", member(discordapi.PermManageChannels),
		discordapi.InteractionOption{Name: "type", Value: "bogus"},
		discordapi.InteractionOption{Name: "category", Value: "Stats"},
	))
	if resp.Data == nil || resp.Data.Flags&discordapi.FlagEphemeral == 0 {
		t.Fatal("expected ephemeral error")
	}
	if !strings.Contains(resp.Data.Content, discordapi.CmdTypes) {
		t.Errorf("error should point at /%s: %q", discordapi.CmdTypes, resp.Data.Content)
	}
}

func TestHandleSetupAdminImpliesManageChannels(t *testing.T) {
	h, f, s := newTestHandler(t)
	f.AddGuild("g1", "Guild One")
	f.SetMembers("g1", []discordapi.GuildMember{{User: discordapi.User{ID: "u1"}}})

	resp := h.Handle(context.Background(), command(discordapi.CmdSetup, "g1", member(discordapi.PermAdministrator),
		discordapi.InteractionOption{Name: "type", Value: "bots"},
		discordapi.InteractionOption{Name: "category", Value: "Stats"},
	))
	if resp.Data != nil && resp.Data.Flags&discordapi.FlagEphemeral != 0 {
		t.Fatalf("admin denied: %q", resp.Data.Content)
	}
	if len(s.Get("g1")) != 1 {
		t.Error("counter not provisioned for administrator")
	}
}

func TestHandleTypes(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), command(discordapi.CmdTypes, "g1", nil))
	if resp.Type != discordapi.CallbackChannelMessageSource || resp.Data == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	for _, want := range []string{"members", "offline-bots", "Total Members", "Offline Bots"} {
		if !strings.Contains(resp.Data.Content, want) {
			t.Errorf("types listing missing %q:\n%s", want, resp.Data.Content)
		}
	}
}

func TestHandleReset(t *testing.T) {
	h, f, s := newTestHandler(t)
	f.AddGuild("g1", "Guild One")
	catID := f.AddChannel("g1", discordapi.ChannelTypeCategory, "Stats", "")
	chID := f.AddChannel("g1", discordapi.ChannelTypeVoice, "Total Members: 5", catID)
	s.Add("g1", store.CounterConfig{ChannelID: chID, Kind: "members", CategoryID: catID})

	resp := h.Handle(context.Background(), command(discordapi.CmdReset, "g1", member(discordapi.PermAdministrator)))
	if resp.Data == nil || !strings.Contains(resp.Data.Content, "Removed 1") {
		t.Fatalf("unexpected reset response: %+v", resp)
	}
	if s.Get("g1") != nil {
		t.Error("store not cleared by reset")
	}
}

func TestHandleResetRequiresAdministrator(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), command(discordapi.CmdReset, "g1", member(discordapi.PermManageChannels)))
	if resp.Data == nil || resp.Data.Flags&discordapi.FlagEphemeral == 0 {
		t.Fatal("expected ephemeral denial")
	}
	if !strings.Contains(resp.Data.Content, "Administrator") {
		t.Errorf("denial does not name the missing permission: %q", resp.Data.Content)
	}
}

func TestHandleResetNothingConfigured(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), command(discordapi.CmdReset, "g1", member(discordapi.PermAdministrator)))
	if resp.Data == nil || resp.Data.Flags&discordapi.FlagEphemeral == 0 {
		t.Fatalf("expected ephemeral no-op notice, got %+v", resp)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), command("frobnicate", "g1", member(discordapi.PermAdministrator)))
	if resp.Data == nil || resp.Data.Flags&discordapi.FlagEphemeral == 0 {
		t.Fatal("expected ephemeral error for unknown command")
	}
}
