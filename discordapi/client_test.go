package discordapi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/testutil"
)

func TestGetGuild(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	f.AddGuild("g1", "Guild One")
	c := f.Client()

	g, err := c.GetGuild(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetGuild: %v", err)
	}
	if g.Name != "Guild One" {
		t.Errorf("guild name = %q", g.Name)
	}

	if _, err := c.GetGuild(context.Background(), "missing"); !errors.Is(err, discordapi.ErrNotFound) {
		t.Errorf("missing guild error = %v, want ErrNotFound", err)
	}
	if _, err := c.GetGuild(context.Background(), ""); err == nil {
		t.Error("empty guild ID accepted")
	}
}

func TestFindCategoryExactMatch(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	catID := f.AddChannel("g1", discordapi.ChannelTypeCategory, "Stats", "")
	f.AddChannel("g1", discordapi.ChannelTypeVoice, "Stats", "") // same name, wrong type
	c := f.Client()

	got, err := c.FindCategory(context.Background(), "g1", "Stats")
	if err != nil {
		t.Fatalf("FindCategory: %v", err)
	}
	if got == nil || got.ID != catID {
		t.Errorf("FindCategory = %+v, want ID %s", got, catID)
	}

	// Case-sensitive: a different casing is a different category.
	got, err = c.FindCategory(context.Background(), "g1", "stats")
	if err != nil {
		t.Fatalf("FindCategory: %v", err)
	}
	if got != nil {
		t.Errorf("case-insensitive match returned %+v", got)
	}
}

func TestCreateVoiceChannel(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	catID := f.AddChannel("g1", discordapi.ChannelTypeCategory, "Stats", "")
	c := f.Client()

	ch, err := c.CreateVoiceChannel(context.Background(), "g1", "Total Members: 5", catID)
	if err != nil {
		t.Fatalf("CreateVoiceChannel: %v", err)
	}
	if ch.Type != discordapi.ChannelTypeVoice || ch.Name != "Total Members: 5" || ch.ParentID != catID {
		t.Errorf("created channel = %+v", ch)
	}
	if _, ok := f.Channels[ch.ID]; !ok {
		t.Error("channel not recorded server-side")
	}
}

func TestGetChannelNotFound(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	c := f.Client()

	if _, err := c.GetChannel(context.Background(), "nope"); !errors.Is(err, discordapi.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRenameChannel(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	chID := f.AddChannel("g1", discordapi.ChannelTypeVoice, "Total Members: 5", "")
	c := f.Client()

	if err := c.RenameChannel(context.Background(), chID, "Total Members: 6"); err != nil {
		t.Fatalf("RenameChannel: %v", err)
	}
	if got := f.Channels[chID].Name; got != "Total Members: 6" {
		t.Errorf("channel name = %q", got)
	}

	f.FailRename[chID] = true
	if err := c.RenameChannel(context.Background(), chID, "Total Members: 7"); err == nil {
		t.Error("expected error from injected rename failure")
	}
}

func TestChildCount(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	catID := f.AddChannel("g1", discordapi.ChannelTypeCategory, "Stats", "")
	f.AddChannel("g1", discordapi.ChannelTypeVoice, "Total Members: 5", catID)
	f.AddChannel("g1", discordapi.ChannelTypeVoice, "Total Bots: 1", catID)
	f.AddChannel("g1", discordapi.ChannelTypeVoice, "general", "")
	c := f.Client()

	n, err := c.ChildCount(context.Background(), "g1", catID)
	if err != nil {
		t.Fatalf("ChildCount: %v", err)
	}
	if n != 2 {
		t.Errorf("ChildCount = %d, want 2", n)
	}
}

func TestListGuildMembers(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	f.SetMembers("g1", []discordapi.GuildMember{
		{User: discordapi.User{ID: "u1"}, Roles: []string{"r1", "r2"}},
		{User: discordapi.User{ID: "b1", Bot: true}},
	})
	c := f.Client()

	members, err := c.ListGuildMembers(context.Background(), "g1")
	if err != nil {
		t.Fatalf("ListGuildMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if !members[1].User.Bot || len(members[0].Roles) != 2 {
		t.Errorf("members = %+v", members)
	}
}

func TestRegisterCommands(t *testing.T) {
	f := testutil.NewFakeDiscord(t)
	c := f.Client()

	if err := c.RegisterCommands(context.Background()); err != nil {
		t.Fatalf("RegisterCommands: %v", err)
	}
	if len(f.Commands) != 3 {
		t.Fatalf("registered %d commands, want 3", len(f.Commands))
	}
	byName := make(map[string]discordapi.ApplicationCommand)
	for _, cmd := range f.Commands {
		byName[cmd.Name] = cmd
	}
	setup, ok := byName[discordapi.CmdSetup]
	if !ok {
		t.Fatalf("missing %s", discordapi.CmdSetup)
	}
	if len(setup.Options) != 2 || len(setup.Options[0].Choices) != 7 {
		t.Errorf("setup schema = %+v", setup)
	}
	if byName[discordapi.CmdReset].DefaultMemberPermissions != "8" {
		t.Errorf("reset permissions = %q, want %q", byName[discordapi.CmdReset].DefaultMemberPermissions, "8")
	}
}
