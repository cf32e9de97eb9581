// Package testutil provides a fake Discord API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/onnwee/guild-tally/backend/discordapi"
)

// FakeDiscord is an in-memory Discord REST API backed by httptest. It keeps
// guild, channel, and member state, records mutating calls, and can inject
// per-channel failures.
type FakeDiscord struct {
	*httptest.Server

	mu         sync.Mutex
	nextID     int
	GuildNames map[string]string
	Channels   map[string]discordapi.Channel
	Members    map[string][]discordapi.GuildMember

	// Failure injection: requests touching these channel IDs return 500.
	FailRename map[string]bool
	FailDelete map[string]bool

	// Call records for assertions, in request order.
	Renames  []string // "channelID=newName"
	Deletes  []string // channelID
	Commands []discordapi.ApplicationCommand
}

// NewFakeDiscord starts the fake server and registers cleanup.
func NewFakeDiscord(t *testing.T) *FakeDiscord {
	t.Helper()
	f := &FakeDiscord{
		GuildNames: make(map[string]string),
		Channels:   make(map[string]discordapi.Channel),
		Members:    make(map[string][]discordapi.GuildMember),
		FailRename: make(map[string]bool),
		FailDelete: make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.route))
	t.Cleanup(f.Close)
	return f
}

// Client returns a discordapi client pointed at the fake server.
func (f *FakeDiscord) Client() *discordapi.Client {
	return &discordapi.Client{Token: "test-token", AppID: "app-1", BaseURL: f.URL}
}

// AddGuild registers a guild name for label lookups.
func (f *FakeDiscord) AddGuild(guildID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GuildNames[guildID] = name
}

// AddChannel inserts a channel and returns its generated ID.
func (f *FakeDiscord) AddChannel(guildID string, chType int, name, parentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	f.Channels[id] = discordapi.Channel{ID: id, GuildID: guildID, Type: chType, Name: name, ParentID: parentID}
	return id
}

// SetMembers replaces the guild's member list.
func (f *FakeDiscord) SetMembers(guildID string, members []discordapi.GuildMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[guildID] = members
}

func (f *FakeDiscord) route(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "guilds" && r.Method == http.MethodGet:
		name, ok := f.GuildNames[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, discordapi.Guild{ID: parts[1], Name: name})

	case len(parts) == 3 && parts[0] == "guilds" && parts[2] == "channels" && r.Method == http.MethodGet:
		guildID := parts[1]
		channels := []discordapi.Channel{}
		for _, ch := range f.Channels {
			if ch.GuildID == guildID {
				channels = append(channels, ch)
			}
		}
		writeJSON(w, channels)

	case len(parts) == 3 && parts[0] == "guilds" && parts[2] == "channels" && r.Method == http.MethodPost:
		guildID := parts[1]
		var req struct {
			Name     string `json:"name"`
			Type     int    `json:"type"`
			ParentID string `json:"parent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.nextID++
		ch := discordapi.Channel{
			ID:       fmt.Sprintf("chan-%d", f.nextID),
			GuildID:  guildID,
			Type:     req.Type,
			Name:     req.Name,
			ParentID: req.ParentID,
		}
		f.Channels[ch.ID] = ch
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, ch)

	case len(parts) == 3 && parts[0] == "guilds" && parts[2] == "members" && r.Method == http.MethodGet:
		members := f.Members[parts[1]]
		if members == nil {
			members = []discordapi.GuildMember{}
		}
		writeJSON(w, members)

	case len(parts) == 2 && parts[0] == "channels":
		f.handleChannel(w, r, parts[1])

	case len(parts) == 3 && parts[0] == "applications" && parts[2] == "commands" && r.Method == http.MethodPut:
		var cmds []discordapi.ApplicationCommand
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.Commands = cmds
		writeJSON(w, cmds)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *FakeDiscord) handleChannel(w http.ResponseWriter, r *http.Request, channelID string) {
	ch, ok := f.Channels[channelID]
	switch r.Method {
	case http.MethodGet:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, ch)
	case http.MethodPatch:
		if f.FailRename[channelID] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ch.Name = req.Name
		f.Channels[channelID] = ch
		f.Renames = append(f.Renames, channelID+"="+req.Name)
		writeJSON(w, ch)
	case http.MethodDelete:
		if f.FailDelete[channelID] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.Channels, channelID)
		f.Deletes = append(f.Deletes, channelID)
		writeJSON(w, ch)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
