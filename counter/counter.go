// Package counter defines the set of live statistics a managed channel can
// display and the pure evaluation of each statistic over a membership
// snapshot. Evaluation performs no I/O; callers supply the member list.
package counter

import "fmt"

// Kind identifies one live statistic.
type Kind string

const (
	KindMembers        Kind = "members"
	KindBots           Kind = "bots"
	KindRoles          Kind = "roles"
	KindOnlineMembers  Kind = "online-members"
	KindOnlineBots     Kind = "online-bots"
	KindOfflineMembers Kind = "offline-members"
	KindOfflineBots    Kind = "offline-bots"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{
	KindMembers,
	KindBots,
	KindRoles,
	KindOnlineMembers,
	KindOnlineBots,
	KindOfflineMembers,
	KindOfflineBots,
}

var labels = map[Kind]string{
	KindMembers:        "Total Members",
	KindBots:           "Total Bots",
	KindRoles:          "Members with Roles",
	KindOnlineMembers:  "Online Members",
	KindOnlineBots:     "Online Bots",
	KindOfflineMembers: "Offline Members",
	KindOfflineBots:    "Offline Bots",
}

// ParseKind validates a raw kind string (e.g. a slash-command choice value).
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := labels[k]
	return k, ok
}

// Label returns the human-readable channel name prefix for the kind,
// or "Unknown" for a kind outside the closed set.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return "Unknown"
}

// PresenceStatus is a member's last known presence. Empty means no presence
// record was available, which every consumer treats as offline.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceIdle    PresenceStatus = "idle"
	PresenceDND     PresenceStatus = "dnd"
	PresenceOffline PresenceStatus = "offline"
)

// Member is one record of a membership snapshot.
type Member struct {
	ID        string
	Bot       bool
	RoleCount int
	Presence  PresenceStatus
}

// Online reports whether the member counts as present. Idle and
// do-not-disturb count as online; offline and a missing record do not.
func (m Member) Online() bool {
	switch m.Presence {
	case PresenceOnline, PresenceIdle, PresenceDND:
		return true
	}
	return false
}

// Evaluate computes the statistic for kind over the snapshot. An unknown
// kind evaluates to 0 rather than erroring; the command layer rejects
// unknown kinds before they can reach storage.
func Evaluate(kind Kind, members []Member) int {
	n := 0
	for _, m := range members {
		switch kind {
		case KindMembers:
			if !m.Bot {
				n++
			}
		case KindBots:
			if m.Bot {
				n++
			}
		case KindRoles:
			// Every member holds the implicit base role; "with roles"
			// means at least one beyond it.
			if !m.Bot && m.RoleCount > 1 {
				n++
			}
		case KindOnlineMembers:
			if !m.Bot && m.Online() {
				n++
			}
		case KindOnlineBots:
			if m.Bot && m.Online() {
				n++
			}
		case KindOfflineMembers:
			if !m.Bot && !m.Online() {
				n++
			}
		case KindOfflineBots:
			if m.Bot && !m.Online() {
				n++
			}
		}
	}
	return n
}

// ChannelName formats the display name a counter channel should carry.
func ChannelName(kind Kind, count int) string {
	return fmt.Sprintf("%s: %d", kind.Label(), count)
}
