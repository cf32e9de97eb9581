package tally

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/onnwee/guild-tally/backend/counter"
	"github.com/onnwee/guild-tally/backend/store"
)

// fakePlatform is an in-memory Platform with failure injection.
type fakePlatform struct {
	mu         sync.Mutex
	members    map[string][]counter.Member
	membersErr error
	channels   map[string]*ChannelRef // by ID
	guildOf    map[string]string      // channel ID -> guild ID
	nextID     int

	failRename map[string]error
	failDelete map[string]error
	createErr  error

	fetches int
	renames []string
	deletes []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:    make(map[string][]counter.Member),
		channels:   make(map[string]*ChannelRef),
		guildOf:    make(map[string]string),
		failRename: make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (f *fakePlatform) addChannel(guildID, name, categoryID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("ch-%d", f.nextID)
	f.channels[id] = &ChannelRef{ID: id, Name: name, CategoryID: categoryID}
	f.guildOf[id] = guildID
	return id
}

func (f *fakePlatform) FetchMembership(_ context.Context, guildID string) ([]counter.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members[guildID], nil
}

func (f *fakePlatform) FindCategory(_ context.Context, guildID, name string) (*ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.channels {
		if f.guildOf[id] == guildID && ch.CategoryID == "" && ch.Name == name {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePlatform) CreateCategory(_ context.Context, guildID, name string) (*ChannelRef, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.addChannel(guildID, name, "")
	cp := *f.channels[id]
	return &cp, nil
}

func (f *fakePlatform) CreateVoiceChannel(_ context.Context, guildID, name, categoryID string) (*ChannelRef, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.addChannel(guildID, name, categoryID)
	cp := *f.channels[id]
	return &cp, nil
}

func (f *fakePlatform) GetChannel(_ context.Context, channelID string) (*ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (f *fakePlatform) RenameChannel(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRename[channelID]; err != nil {
		return err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s gone", channelID)
	}
	ch.Name = name
	f.renames = append(f.renames, channelID+"="+name)
	return nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDelete[channelID]; err != nil {
		return err
	}
	delete(f.channels, channelID)
	f.deletes = append(f.deletes, channelID)
	return nil
}

func (f *fakePlatform) ChildCount(_ context.Context, _ string, categoryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ch := range f.channels {
		if ch.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func nonBots(n int) []counter.Member {
	members := make([]counter.Member, n)
	for i := range members {
		members[i] = counter.Member{ID: fmt.Sprintf("u%d", i), RoleCount: 1}
	}
	return members
}

func newTestService(t *testing.T, p Platform) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "counters.json")
	return NewService(store.New(), p, path, nil)
}

func TestSetUpCreatesCategoryAndChannel(t *testing.T) {
	fake := newFakePlatform()
	fake.members["g1"] = []counter.Member{
		{ID: "a", RoleCount: 2},
		{ID: "b", RoleCount: 1},
		{ID: "c", RoleCount: 3},
	}
	svc := newTestService(t, fake)

	cfg, err := svc.SetUp(context.Background(), "g1", counter.KindRoles, "Stats")
	if err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	ch, _ := fake.GetChannel(context.Background(), cfg.ChannelID)
	if ch == nil {
		t.Fatal("counter channel not created")
	}
	if ch.Name != "Members with Roles: 2" {
		t.Errorf("channel name = %q, want %q", ch.Name, "Members with Roles: 2")
	}
	cat, _ := fake.GetChannel(context.Background(), cfg.CategoryID)
	if cat == nil || cat.Name != "Stats" {
		t.Errorf("category = %+v, want Stats", cat)
	}
	configs := svc.Store.Get("g1")
	if len(configs) != 1 || configs[0] != cfg {
		t.Errorf("store configs = %+v, want [%+v]", configs, cfg)
	}
	// Setup persists immediately.
	if loaded := store.Load(svc.SnapshotPath); len(loaded.Get("g1")) != 1 {
		t.Error("snapshot not persisted after setup")
	}
}

func TestSetUpReusesExistingCategory(t *testing.T) {
	fake := newFakePlatform()
	fake.members["g1"] = nonBots(4)
	catID := fake.addChannel("g1", "Stats", "")
	svc := newTestService(t, fake)

	cfg, err := svc.SetUp(context.Background(), "g1", counter.KindMembers, "Stats")
	if err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	if cfg.CategoryID != catID {
		t.Errorf("CategoryID = %q, want existing %q", cfg.CategoryID, catID)
	}
	ch, _ := fake.GetChannel(context.Background(), cfg.ChannelID)
	if ch == nil || ch.Name != "Total Members: 4" {
		t.Errorf("channel = %+v, want Total Members: 4", ch)
	}
}

func TestSetUpCategoryNameIsCaseSensitive(t *testing.T) {
	fake := newFakePlatform()
	fake.members["g1"] = nonBots(1)
	fake.addChannel("g1", "stats", "")
	svc := newTestService(t, fake)

	cfg, err := svc.SetUp(context.Background(), "g1", counter.KindMembers, "Stats")
	if err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	cat, _ := fake.GetChannel(context.Background(), cfg.CategoryID)
	if cat == nil || cat.Name != "Stats" {
		t.Errorf("expected a fresh %q category, got %+v", "Stats", cat)
	}
}

func TestSetUpAbortsWithoutStoreMutation(t *testing.T) {
	fake := newFakePlatform()
	fake.membersErr = fmt.Errorf("api down")
	svc := newTestService(t, fake)

	if _, err := svc.SetUp(context.Background(), "g1", counter.KindMembers, "Stats"); err == nil {
		t.Fatal("expected error")
	}
	if got := svc.Store.Get("g1"); len(got) != 0 {
		t.Errorf("store mutated on failed setup: %+v", got)
	}
}

func TestTearDownNothingToReset(t *testing.T) {
	fake := newFakePlatform()
	svc := newTestService(t, fake)

	res, err := svc.TearDown(context.Background(), "g1")
	if err != nil {
		t.Fatalf("TearDown: %v", err)
	}
	if res.Deleted != 0 || res.Failed != 0 {
		t.Errorf("result = %+v, want zero counts", res)
	}
	if len(fake.deletes) != 0 {
		t.Errorf("unexpected delete calls: %v", fake.deletes)
	}
}

func TestTearDownPartialFailureStillClearsStore(t *testing.T) {
	fake := newFakePlatform()
	svc := newTestService(t, fake)
	catID := fake.addChannel("g1", "Stats", "")
	for i, kind := range []counter.Kind{counter.KindMembers, counter.KindBots, counter.KindRoles} {
		chID := fake.addChannel("g1", counter.ChannelName(kind, i), catID)
		svc.Store.Add("g1", store.CounterConfig{ChannelID: chID, Kind: kind, CategoryID: catID})
		if i == 1 {
			fake.failDelete[chID] = fmt.Errorf("rate limited")
		}
	}

	res, err := svc.TearDown(context.Background(), "g1")
	if err != nil {
		t.Fatalf("TearDown: %v", err)
	}
	if res.Deleted != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want Deleted 2 Failed 1", res)
	}
	if got := svc.Store.Get("g1"); len(got) != 0 {
		t.Errorf("store not cleared after partial failure: %+v", got)
	}
	if loaded := store.Load(svc.SnapshotPath); len(loaded.Get("g1")) != 0 {
		t.Error("cleared store not persisted")
	}
}

func TestTearDownRemovesEmptyCategory(t *testing.T) {
	fake := newFakePlatform()
	svc := newTestService(t, fake)
	catID := fake.addChannel("g1", "Stats", "")
	chID := fake.addChannel("g1", "Total Members: 5", catID)
	svc.Store.Add("g1", store.CounterConfig{ChannelID: chID, Kind: counter.KindMembers, CategoryID: catID})

	res, err := svc.TearDown(context.Background(), "g1")
	if err != nil {
		t.Fatalf("TearDown: %v", err)
	}
	if res.Deleted != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if cat, _ := fake.GetChannel(context.Background(), catID); cat != nil {
		t.Error("empty category not deleted")
	}
}

func TestTearDownKeepsNonEmptyCategory(t *testing.T) {
	fake := newFakePlatform()
	svc := newTestService(t, fake)
	catID := fake.addChannel("g1", "Stats", "")
	chID := fake.addChannel("g1", "Total Members: 5", catID)
	// Unmanaged channel sharing the category.
	fake.addChannel("g1", "general-voice", catID)
	svc.Store.Add("g1", store.CounterConfig{ChannelID: chID, Kind: counter.KindMembers, CategoryID: catID})

	if _, err := svc.TearDown(context.Background(), "g1"); err != nil {
		t.Fatalf("TearDown: %v", err)
	}
	if cat, _ := fake.GetChannel(context.Background(), catID); cat == nil {
		t.Error("category with remaining children was deleted")
	}
}
