// Package gateway maintains a minimal Discord gateway session: identify,
// heartbeat, and the handful of dispatch events the bot consumes
// (membership changes and presence updates). It feeds the presence cache
// and triggers debounced reconciliation.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/guild-tally/backend/counter"
)

// DefaultURL is the Discord gateway endpoint.
const DefaultURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents this bot subscribes to.
const (
	intentGuilds         = 1 << 0
	intentGuildMembers   = 1 << 1
	intentGuildPresences = 1 << 8
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

type payload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Session is one gateway connection owner. Run reconnects with backoff
// until the context is cancelled.
type Session struct {
	Token     string
	URL       string
	Presences *PresenceCache

	// OnGuildEvent fires on membership or presence changes for a guild;
	// it must not block.
	OnGuildEvent func(guildID string)
}

// NewSession builds a session with the default endpoint and a fresh
// presence cache.
func NewSession(token string) *Session {
	return &Session{Token: token, URL: DefaultURL, Presences: NewPresenceCache()}
}

// Run connects and processes events until ctx is done, reconnecting with
// linear backoff capped at one minute.
func (s *Session) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("gateway session ended, reconnecting", slog.Any("err", err), slog.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff += time.Second
		}
	}
}

// connectOnce runs a single gateway connection to completion.
func (s *Session) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("gateway close", slog.Any("err", err))
		}
	}()

	// Close the socket when ctx ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	// seq is read by the heartbeat goroutine; writes to the socket are
	// serialized because gorilla/websocket allows one writer at a time.
	var seq atomic.Int64
	var writeMu sync.Mutex
	write := func(p payload) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(p)
	}
	heartbeatStop := make(chan struct{})
	defer close(heartbeatStop)
	heartbeatStarted := false

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gateway read: %w", err)
		}
		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Warn("gateway payload unparsable", slog.Any("err", err))
			continue
		}
		switch p.Op {
		case opHello:
			var hello struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(p.D, &hello); err != nil {
				return fmt.Errorf("gateway hello: %w", err)
			}
			if err := s.identify(write); err != nil {
				return err
			}
			if !heartbeatStarted && hello.HeartbeatInterval > 0 {
				heartbeatStarted = true
				go s.heartbeatLoop(write, time.Duration(hello.HeartbeatInterval)*time.Millisecond, &seq, heartbeatStop)
			}
		case opHeartbeat:
			if err := write(payload{Op: opHeartbeat, D: seqJSON(seq.Load())}); err != nil {
				return fmt.Errorf("gateway heartbeat: %w", err)
			}
		case opHeartbeatACK:
			// nothing to do
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("gateway invalidated session")
		case opDispatch:
			seq.Store(p.S)
			s.dispatch(p.T, p.D)
		}
	}
}

func (s *Session) identify(write func(payload) error) error {
	identify := payload{Op: opIdentify}
	d := map[string]any{
		"token":   s.Token,
		"intents": intentGuilds | intentGuildMembers | intentGuildPresences,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "guild-tally",
			"device":  "guild-tally",
		},
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	identify.D = raw
	if err := write(identify); err != nil {
		return fmt.Errorf("gateway identify: %w", err)
	}
	return nil
}

func (s *Session) heartbeatLoop(write func(payload) error, interval time.Duration, seq *atomic.Int64, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := write(payload{Op: opHeartbeat, D: seqJSON(seq.Load())}); err != nil {
				slog.Debug("gateway heartbeat write failed", slog.Any("err", err))
				return
			}
		}
	}
}

func seqJSON(seq int64) json.RawMessage {
	raw, _ := json.Marshal(seq)
	return raw
}

// dispatch routes the gateway events the bot cares about. Unknown events
// are ignored.
func (s *Session) dispatch(event string, data json.RawMessage) {
	switch event {
	case "READY":
		slog.Info("gateway ready")
	case "GUILD_CREATE":
		var g struct {
			ID        string `json:"id"`
			Presences []struct {
				User struct {
					ID string `json:"id"`
				} `json:"user"`
				Status string `json:"status"`
			} `json:"presences"`
		}
		if err := json.Unmarshal(data, &g); err != nil {
			slog.Warn("guild create unparsable", slog.Any("err", err))
			return
		}
		for _, pr := range g.Presences {
			s.Presences.Set(g.ID, pr.User.ID, counter.PresenceStatus(pr.Status))
		}
		slog.Debug("gateway guild seeded", slog.String("guild_id", g.ID), slog.Int("presences", len(g.Presences)))
	case "GUILD_DELETE":
		var g struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &g); err == nil {
			s.Presences.DropGuild(g.ID)
		}
	case "PRESENCE_UPDATE":
		var pr struct {
			GuildID string `json:"guild_id"`
			User    struct {
				ID string `json:"id"`
			} `json:"user"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &pr); err != nil {
			slog.Warn("presence update unparsable", slog.Any("err", err))
			return
		}
		s.Presences.Set(pr.GuildID, pr.User.ID, counter.PresenceStatus(pr.Status))
		s.emit(pr.GuildID)
	case "GUILD_MEMBER_ADD", "GUILD_MEMBER_REMOVE":
		var m struct {
			GuildID string `json:"guild_id"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			slog.Warn("member event unparsable", slog.String("event", event), slog.Any("err", err))
			return
		}
		s.emit(m.GuildID)
	}
}

func (s *Session) emit(guildID string) {
	if s.OnGuildEvent != nil && guildID != "" {
		s.OnGuildEvent(guildID)
	}
}
