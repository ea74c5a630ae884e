// Package channel implements the channel registry and its atomic
// lifecycle operations: create-on-first-join, destroy-on-last-part, and
// membership broadcasts that must observe a consistent snapshot of who
// is present.
package channel

import "github.com/fenag/yaIRCd-sub000/internal/client"

// fixedTopic and fixedModes are the spec's placeholder topic/mode
// values: this engine does not implement TOPIC or MODE beyond the
// advertised +nt.
const (
	fixedTopic = "No topic is set"
	fixedModes = "+nt"
)

// Member is one channel's record of a joined client. Modes is reserved
// for per-member prefixes (op/voice); yaIRCd does not assign any, so it
// is always empty.
type Member struct {
	Client *client.Client
	Modes  string
}

// Channel holds one channel's topic, advertised modes and membership.
// Every field here is only ever touched while the owning Engine's
// registry lock is held — Engine is the sole mutator, so Channel itself
// carries no lock of its own.
type Channel struct {
	Name    string
	Topic   string
	Modes   string
	members map[string]*Member // keyed by folded nickname
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Topic:   fixedTopic,
		Modes:   fixedModes,
		members: make(map[string]*Member),
	}
}

// MemberCount reports the current membership size. Callers outside this
// package only ever see it via a snapshot returned under lock.
func (c *Channel) MemberCount() int { return len(c.members) }

func (c *Channel) snapshotHostmasks() []string {
	out := make([]string, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m.Client.Hostmask())
	}
	return out
}

// ValidName reports whether name is an acceptable channel name: a
// leading '#' followed by any byte except NUL, BELL, CR, LF, space,
// comma or colon.
func ValidName(name string) bool {
	if len(name) < 2 || name[0] != '#' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !validChanByte(name[i]) {
			return false
		}
	}
	return true
}

func validChanByte(b byte) bool {
	switch b {
	case 0, 7, '\r', '\n', ' ', ',', ':':
		return false
	}
	return true
}
