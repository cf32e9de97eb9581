package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// LabelFunc resolves a guild ID to a human-readable name at save time. The
// label is diagnostic only and is never read back into correctness-relevant
// state; resolvers should return "Unknown" rather than fail.
type LabelFunc func(guildID string) string

// guildEntry is the persisted per-guild shape.
type guildEntry struct {
	Label   string          `json:"label"`
	Configs []CounterConfig `json:"configs"`
}

// Encode serializes the store to the snapshot document. Encoding never fails
// on label resolution; a nil labelFn writes "Unknown" throughout.
func Encode(s *Store, labelFn LabelFunc) ([]byte, error) {
	doc := make(map[string]guildEntry)
	for guildID, configs := range s.AllEntries() {
		label := "Unknown"
		if labelFn != nil {
			if l := labelFn(guildID); l != "" {
				label = l
			}
		}
		doc[guildID] = guildEntry{Label: label, Configs: configs}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses a snapshot document into a fresh store. Two per-guild
// layouts are accepted: the current {label, configs} object and the legacy
// bare config array. An entry matching neither is skipped with a warning.
// A document that does not parse at all yields an empty store and an error
// the caller is expected to log, not fail on.
func Decode(data []byte) (*Store, error) {
	s := New()
	if len(data) == 0 {
		return s, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("parse snapshot: %w", err)
	}
	for guildID, entry := range raw {
		var ge guildEntry
		if err := json.Unmarshal(entry, &ge); err == nil && ge.Configs != nil {
			for _, cfg := range ge.Configs {
				s.Add(guildID, cfg)
			}
			continue
		}
		// Legacy layout: the guild maps directly to its config array.
		var configs []CounterConfig
		if err := json.Unmarshal(entry, &configs); err == nil {
			for _, cfg := range configs {
				s.Add(guildID, cfg)
			}
			continue
		}
		slog.Warn("skipping unrecognized snapshot entry", slog.String("guild_id", guildID))
	}
	return s, nil
}

// Load reads the snapshot file into a fresh store. A missing or unparsable
// file is non-fatal and yields an empty store.
func Load(path string) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("snapshot read failed, starting empty", slog.String("path", path), slog.Any("err", err))
		}
		return New()
	}
	s, err := Decode(data)
	if err != nil {
		slog.Warn("snapshot unparsable, starting empty", slog.String("path", path), slog.Any("err", err))
	}
	return s
}

// Save writes the snapshot with a full overwrite: encode, write to a temp
// file in the same directory, then rename over the target. Only one process
// writes the file, so no file locking is needed.
func (s *Store) Save(path string, labelFn LabelFunc) error {
	data, err := Encode(s, labelFn)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
