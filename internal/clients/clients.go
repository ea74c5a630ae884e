// Package clients is the client registry: a nickname-keyed wrapper over
// internal/registry, case-folded per the Scandinavian rule so that two
// nicknames differing only in {}|^ vs []\~ collide.
package clients

import (
	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/registry"
	"github.com/fenag/yaIRCd-sub000/internal/trie"
)

func alphabet() trie.Alphabet {
	return trie.Alphabet{
		Size:    256,
		// '~' never appears in a nickname as given, but FoldNick maps
		// '^' to it, so folded keys must accept it.
		IsValid: func(b byte) bool { return client.ValidNickChar(b) || b == '~' },
		Index:   func(b byte) int { return int(b) },
		Byte:    func(idx int) byte { return byte(idx) },
	}
}

// Registry indexes registered clients by folded nickname.
type Registry struct {
	reg *registry.Registry[*client.Client]
}

// New returns an empty client registry.
func New() *Registry {
	return &Registry{reg: registry.New[*client.Client](alphabet(), nil)}
}

// Find resolves a nickname (already folded) to its client.
func (r *Registry) Find(foldedNick string) (*client.Client, bool) {
	return r.reg.Find(foldedNick)
}

// FindAndAct resolves foldedNick and runs f on it while the registry
// lock is held, bounding the lock span to f's own work — the primitive
// every cross-connection delivery path (PRIVMSG, WHOIS) uses instead of
// handing out the raw client pointer under lock.
func (r *Registry) FindAndAct(foldedNick string, f func(*client.Client)) bool {
	return r.reg.FindAndAct(foldedNick, f)
}

// Register publishes c under foldedNick, failing if the nickname
// collides with an already-registered client.
func (r *Registry) Register(foldedNick string, c *client.Client) trie.Result {
	return r.reg.InsertIfAbsent(foldedNick, c)
}

// Unregister removes foldedNick, returning the client that was present.
func (r *Registry) Unregister(foldedNick string) (*client.Client, bool) {
	return r.reg.Remove(foldedNick)
}

// Len reports how many clients are currently registered.
func (r *Registry) Len() int { return r.reg.Len() }
