package channel

import (
	"fmt"

	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/ircnum"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
	"github.com/fenag/yaIRCd-sub000/internal/registry"
	"github.com/fenag/yaIRCd-sub000/internal/trie"
)

// JoinResult is the outcome of Engine.Join.
type JoinResult int

const (
	JoinOK JoinResult = iota
	// JoinAlreadyMember resolves spec.md §9's open question: joining a
	// channel you are already on is an error (ERR_USERONCHANNEL), not
	// a silent no-op — see DESIGN.md.
	JoinAlreadyMember
)

// PartResult is the outcome of Engine.Part.
type PartResult int

const (
	PartOK PartResult = iota
	PartNotOnChannel
	PartNoSuchChannel
)

// BroadcastResult is the outcome of Engine.Broadcast.
type BroadcastResult int

const (
	BroadcastOK BroadcastResult = iota
	BroadcastNoSuchChannel
)

func alphabet() trie.Alphabet {
	return trie.Alphabet{
		Size:    256,
		IsValid: validChanByte,
		Index:   func(b byte) int { return int(b) },
		Byte:    func(idx int) byte { return byte(idx) },
	}
}

// Engine is the channel registry plus its atomic join/part/broadcast
// operations, each executed entirely under the registry's one global
// lock so membership snapshots stay consistent with delivery.
type Engine struct {
	reg *registry.Registry[*Channel]
	// Metrics is set by cmd/yaircd/main.go after construction; nil in
	// tests that don't care about observability, so Join/Part guard
	// every use.
	Metrics *metrics.Registry
}

// NewEngine returns an empty channel engine.
func NewEngine() *Engine {
	return &Engine{reg: registry.New[*Channel](alphabet(), nil)}
}

// Join adds c to channel name, creating the channel if this is its
// first member. It returns a snapshot of every member's hostmask
// (self included) captured atomically with the join, for the
// MODE/TOPIC/NAMREPLY acknowledgement sequence.
func (e *Engine) Join(name string, c *client.Client) (JoinResult, []string) {
	var result JoinResult
	var snapshot []string

	_, created := e.reg.FindOrInsert(name,
		func(existing *Channel) {
			folded := c.FoldedNick()
			if _, already := existing.members[folded]; already {
				result = JoinAlreadyMember
				snapshot = existing.snapshotHostmasks()
				return
			}
			existing.members[folded] = &Member{Client: c}
			notice := fmt.Sprintf(":%s JOIN :%s\r\n", c.Hostmask(), name)
			for k, m := range existing.members {
				if k == folded {
					continue
				}
				m.Client.Send(notice)
			}
			result = JoinOK
			snapshot = existing.snapshotHostmasks()
		},
		func() *Channel {
			ch := newChannel(name)
			ch.members[c.FoldedNick()] = &Member{Client: c}
			result = JoinOK
			snapshot = ch.snapshotHostmasks()
			return ch
		},
	)
	if created && e.Metrics != nil {
		e.Metrics.ChannelsCreated.Inc()
	}
	return result, snapshot
}

// Part removes c from channel name, notifying the remaining members and
// destroying the channel if c was its last member. notice is the fully
// composed PART/QUIT line to relay to the others.
func (e *Engine) Part(name string, c *client.Client, notice string) PartResult {
	result := PartNoSuchChannel
	destroyed := false
	found := e.reg.FindAndMaybeRemove(name,
		func(ch *Channel) {
			folded := c.FoldedNick()
			if _, ok := ch.members[folded]; !ok {
				result = PartNotOnChannel
				return
			}
			delete(ch.members, folded)
			for _, m := range ch.members {
				m.Client.Send(notice)
			}
			result = PartOK
			destroyed = ch.MemberCount() == 0
		},
		func(ch *Channel) bool { return ch.MemberCount() == 0 },
	)
	if !found {
		return PartNoSuchChannel
	}
	if destroyed && e.Metrics != nil {
		e.Metrics.ChannelsDestroyed.Inc()
	}
	return result
}

// Broadcast relays a PRIVMSG to every member of name except sender.
func (e *Engine) Broadcast(name string, sender *client.Client, text string) BroadcastResult {
	found := e.reg.FindAndAct(name, func(ch *Channel) {
		folded := sender.FoldedNick()
		notice := ircnum.CapLine(fmt.Sprintf(":%s PRIVMSG %s :%s\r\n", sender.Hostmask(), name, text))
		for k, m := range ch.members {
			if k == folded {
				continue
			}
			m.Client.Send(notice)
		}
	})
	if !found {
		return BroadcastNoSuchChannel
	}
	return BroadcastOK
}

// List visits every channel in registry order, reporting its name,
// topic and member count.
func (e *Engine) List(fn func(name, topic string, count int)) {
	e.reg.ForEach(func(_ string, ch *Channel) {
		fn(ch.Name, ch.Topic, ch.MemberCount())
	})
}

// Lookup reports whether name exists and, if so, its member hostmasks
// and topic — used by the dispatcher's JOIN handler to read the topic
// for RPL_TOPIC, and by tests.
func (e *Engine) Lookup(name string) (topic string, members []string, ok bool) {
	ch, found := e.reg.Find(name)
	if !found {
		return "", nil, false
	}
	return ch.Topic, ch.snapshotHostmasks(), true
}

// Count reports the number of live channels.
func (e *Engine) Count() int { return e.reg.Len() }
