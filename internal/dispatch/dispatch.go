// Package dispatch implements the command dispatcher of spec.md §4.7:
// two registration-state-keyed lookup tables mapping command name to
// handler, with the exact numeric-reply contract each command carries.
package dispatch

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fenag/yaIRCd-sub000/internal/channel"
	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/clients"
	"github.com/fenag/yaIRCd-sub000/internal/ircerr"
	"github.com/fenag/yaIRCd-sub000/internal/ircmsg"
	"github.com/fenag/yaIRCd-sub000/internal/ircnum"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
	"github.com/fenag/yaIRCd-sub000/internal/trie"
)

// maxLine is the wire envelope every generated reply must fit within.
const maxLine = 512

// Env is every dependency a handler needs, threaded explicitly rather
// than read from a global — constructed once in cmd/yaircd/main.go and
// shared read-only across all connections.
type Env struct {
	ServerName string
	NetName    string
	ServDesc   string
	Created    string
	Admin      struct{ Name, Nick, Email string }
	ChanLimit  int
	MOTD       []string
	Clients    *clients.Registry
	Channels   *channel.Engine
	Logger     *zap.Logger
	Metrics    *metrics.Registry
}

// HandlerFunc implements one command. It returns true if the connection
// should terminate after the handler returns (presently only QUIT).
type HandlerFunc func(env *Env, c *client.Client, msg *ircmsg.Message) (terminate bool)

// Table is a case-insensitive command lookup, backed by the same trie
// used for the client and channel registries.
type Table struct {
	t *trie.Trie[HandlerFunc]
}

func newTable() *Table {
	alphabet := trie.Alphabet{
		Size:    256,
		IsValid: func(b byte) bool { return true },
		Index:   func(b byte) int { return int(b) },
		Byte:    func(idx int) byte { return byte(idx) },
	}
	return &Table{t: trie.New[HandlerFunc](alphabet, nil)}
}

func (t *Table) register(name string, h HandlerFunc) {
	t.t.Insert(strings.ToUpper(name), h)
}

func (t *Table) lookup(name string) (HandlerFunc, bool) {
	return t.t.Lookup(strings.ToUpper(name))
}

// Unregistered and Registered are the two dispatch tables of spec.md
// §4.7, built once at startup.
var Unregistered = buildUnregisteredTable()
var Registered = buildRegisteredTable()

func buildUnregisteredTable() *Table {
	t := newTable()
	t.register("NICK", handleNick)
	t.register("USER", handleUser)
	t.register("PONG", handlePong)
	return t
}

func buildRegisteredTable() *Table {
	t := newTable()
	t.register("NICK", handleNickRegistered)
	t.register("USER", handleUserRegistered)
	t.register("QUIT", handleQuit)
	t.register("PRIVMSG", handlePrivmsg)
	t.register("WHOIS", handleWhois)
	t.register("JOIN", handleJoin)
	t.register("PART", handlePart)
	t.register("LIST", handleList)
	t.register("PONG", handlePong)
	return t
}

// Dispatch routes msg to the handler for c's current registration
// state, emitting ERR_NOTREGISTERED/ERR_UNKNOWNCOMMAND when the command
// name matches no entry. It returns true if the caller should tear the
// connection down.
func Dispatch(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	table := Registered
	if !c.Registered() {
		table = Unregistered
	}

	h, ok := table.lookup(string(msg.Command))
	if !ok {
		if c.Registered() {
			reply(env, c, ircerr.ErrUnknownCommand, string(msg.Command))
		} else {
			replyPlain(env, c, ircerr.ErrNotRegistered)
		}
		return false
	}
	if env.Metrics != nil {
		env.Metrics.CommandsDispatched.WithLabelValues(strings.ToUpper(string(msg.Command))).Inc()
	}
	return h(env, c, msg)
}

func target(c *client.Client) string {
	nick := c.Nick()
	if nick == "" {
		return "*"
	}
	return nick
}

// reply renders a numeric whose remainder is "{target} {extra} :{text}" —
// extra is a middle parameter (the offending nick/channel/command), not
// part of the trailing text, per spec.md §8 (e.g. ":S 401 alice ghost
// :No such nick/channel", not "...alice :ghost No such nick/channel").
func reply(env *Env, c *client.Client, e *ircerr.Error, extra string) {
	c.Send(ircnum.Line(env.ServerName, e.Code, fmt.Sprintf("%s %s :%s", target(c), extra, e.Text)))
}

func replyPlain(env *Env, c *client.Client, e *ircerr.Error) {
	c.Send(ircnum.Reply(env.ServerName, e.Code, target(c), e.Text))
}

func handleNick(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNoNicknameGiven)
		return false
	}
	nick := string(msg.Param(0))
	if len(nick) > client.MaxNickLength {
		reply(env, c, ircerr.ErrErroneusNickname, nick)
		return false
	}
	for i := 0; i < len(nick); i++ {
		if !client.ValidNickChar(nick[i]) {
			reply(env, c, ircerr.ErrErroneusNickname, nick)
			return false
		}
	}
	folded := client.FoldNick(nick)
	if _, exists := env.Clients.Find(folded); exists {
		reply(env, c, ircerr.ErrNicknameInUse, nick)
		return false
	}
	c.SetNick(nick, folded)
	if c.Username != "" {
		completeRegistration(env, c)
	}
	return false
}

func handleUser(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount < 4 {
		replyPlain(env, c, ircerr.ErrNeedMoreParams)
		return false
	}
	c.Username = string(msg.Param(0))
	c.Realname = string(msg.Param(3))
	if c.Nick() != "" {
		completeRegistration(env, c)
	}
	return false
}

func handleUserRegistered(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	replyPlain(env, c, ircerr.ErrAlreadyRegistred)
	return false
}

// handleNickRegistered covers NICK sent after registration. spec.md §1
// lists "nickname changes after registration" as a non-goal, so the
// handler refuses it rather than silently reusing the pre-registration
// codepath (which would let a live client steal a different identity).
func handleNickRegistered(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	replyPlain(env, c, ircerr.ErrAlreadyRegistred)
	return false
}

func completeRegistration(env *Env, c *client.Client) {
	res := env.Clients.Register(c.FoldedNick(), c)
	if res == trie.Exists {
		// Registration never completed, so the client identifier is
		// still "*" even though c.Nick() already holds the losing nick.
		c.Send(ircnum.Line(env.ServerName, ircerr.ErrNicknameInUse.Code,
			fmt.Sprintf("* %s :%s", c.Nick(), ircerr.ErrNicknameInUse.Text)))
		return
	}
	c.MarkRegistered()

	nick := c.Nick()
	c.Send(ircnum.Line(env.ServerName, ircnum.RPL_WELCOME,
		fmt.Sprintf("%s :Welcome to the %s Internet Relay Chat Network %s!%s@%s", nick, env.NetName, nick, c.Username, c.CloakedHost)))
	c.Send(ircnum.Line(env.ServerName, ircnum.RPL_YOURHOST,
		fmt.Sprintf("%s :Your host is %s, running version yaIRCd", nick, env.ServerName)))
	c.Send(ircnum.Line(env.ServerName, ircnum.RPL_CREATED,
		fmt.Sprintf("%s :This server was created %s", nick, env.Created)))
	c.Send(ircnum.Line(env.ServerName, ircnum.RPL_MYINFO,
		fmt.Sprintf("%s %s yaIRCd o o", nick, env.ServerName)))

	sendMOTD(env, c)
}

func sendMOTD(env *Env, c *client.Client) {
	nick := c.Nick()
	if len(env.MOTD) == 0 {
		return
	}
	c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_MOTDSTART, nick, fmt.Sprintf("- %s Message of the day -", env.ServerName)))
	for _, line := range env.MOTD {
		c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_MOTD, nick, "- "+line))
	}
	c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_ENDOFMOTD, nick, "End of /MOTD command"))
}

func handleQuit(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	reason := "Client Quit"
	if msg.ParamCount > 0 {
		reason = string(msg.Param(0))
	}
	c.SetQuitReason(reason)
	return true
}

func handlePrivmsg(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNoRecipient)
		return false
	}
	if msg.ParamCount < 2 {
		replyPlain(env, c, ircerr.ErrNoTextToSend)
		return false
	}
	targetName := string(msg.Param(0))
	text := string(msg.Param(1))

	if strings.HasPrefix(targetName, "#") {
		res := env.Channels.Broadcast(targetName, c, text)
		if res == channel.BroadcastNoSuchChannel {
			reply(env, c, ircerr.ErrNoSuchNick, targetName)
		} else if env.Metrics != nil {
			env.Metrics.PrivmsgsRouted.Inc()
		}
		return false
	}

	line := ircnum.CapLine(fmt.Sprintf(":%s PRIVMSG %s :%s\r\n", c.Hostmask(), targetName, text))
	found := env.Clients.FindAndAct(client.FoldNick(targetName), func(recipient *client.Client) {
		recipient.Send(line)
	})
	if !found {
		reply(env, c, ircerr.ErrNoSuchNick, targetName)
	} else if env.Metrics != nil {
		env.Metrics.PrivmsgsRouted.Inc()
	}
	return false
}

func handleWhois(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNoNicknameGiven)
		return false
	}
	targetName := string(msg.Param(0))
	me := target(c)

	found := env.Clients.FindAndAct(client.FoldNick(targetName), func(who *client.Client) {
		c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_WHOISUSER, me,
			fmt.Sprintf("%s %s %s * :%s", who.Nick(), who.Username, who.CloakedHost, who.Realname)))
		c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_WHOISSERVER, me,
			fmt.Sprintf("%s %s :%s", who.Nick(), env.ServerName, env.ServDesc)))

		for _, chunk := range chunkChannels(who.Channels(), maxLine-len(env.ServerName)-len(ircnum.RPL_WHOISCHANNELS)-len(me)-len(who.Nick())-10) {
			c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_WHOISCHANNELS, me,
				fmt.Sprintf("%s %s", who.Nick(), chunk)))
		}
		c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_ENDOFWHOIS, me,
			fmt.Sprintf("%s :End of /WHOIS list", who.Nick())))
	})
	if !found {
		reply(env, c, ircerr.ErrNoSuchNick, targetName)
	}
	return false
}

// chunkChannels joins names with spaces into lines no longer than
// budget bytes, so RPL_WHOISCHANNELS never pushes a reply past the
// 512-byte wire envelope regardless of how many channels a client has
// joined.
func chunkChannels(names []string, budget int) []string {
	if len(names) == 0 {
		return nil
	}
	if budget < 1 {
		budget = 1
	}
	var lines []string
	var b strings.Builder
	for _, n := range names {
		if b.Len() == 0 {
			b.WriteString(n)
			continue
		}
		if b.Len()+1+len(n) > budget {
			lines = append(lines, b.String())
			b.Reset()
			b.WriteString(n)
			continue
		}
		b.WriteByte(' ')
		b.WriteString(n)
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}

func handleJoin(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNeedMoreParams)
		return false
	}
	name := string(msg.Param(0))
	if !channel.ValidName(name) {
		reply(env, c, ircerr.ErrNoSuchChannel, name)
		return false
	}
	if c.ChannelCount() >= env.ChanLimit {
		reply(env, c, ircerr.ErrTooManyChannels, name)
		return false
	}

	res, members := env.Channels.Join(name, c)
	if res == channel.JoinAlreadyMember {
		reply(env, c, ircerr.ErrUserOnChannel, name)
		return false
	}

	c.AddChannel(name)
	c.Send(fmt.Sprintf(":%s JOIN :%s\r\n", c.Hostmask(), name))
	c.Send(fmt.Sprintf(":%s MODE %s +nt\r\n", env.ServerName, name))

	topic, _, _ := env.Channels.Lookup(name)
	c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_TOPIC, fmt.Sprintf("%s %s", c.Nick(), name), topic))

	namesLine := strings.Join(members, " ")
	c.Send(ircnum.Line(env.ServerName, ircnum.RPL_NAMREPLY,
		fmt.Sprintf("%s = %s :%s", c.Nick(), name, namesLine)))
	c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_ENDOFNAMES, fmt.Sprintf("%s %s", c.Nick(), name), "End of NAMES list"))
	return false
}

func handlePart(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNeedMoreParams)
		return false
	}
	name := string(msg.Param(0))
	reason := c.Nick()
	if msg.ParamCount > 1 {
		reason = string(msg.Param(1))
	}
	notice := fmt.Sprintf(":%s PART %s :%s\r\n", c.Hostmask(), name, reason)

	res := env.Channels.Part(name, c, notice)
	switch res {
	case channel.PartNotOnChannel, channel.PartNoSuchChannel:
		reply(env, c, ircerr.ErrNotOnChannel, name)
		return false
	}
	c.RemoveChannel(name)
	c.Send(notice)
	return false
}

func handleList(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	me := target(c)
	env.Channels.List(func(name, topic string, count int) {
		c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_LIST, me, fmt.Sprintf("%s %d :%s", name, count, topic)))
	})
	c.Send(ircnum.Reply(env.ServerName, ircnum.RPL_LISTEND, me, "End of /LIST"))
	return false
}

func handlePong(env *Env, c *client.Client, msg *ircmsg.Message) bool {
	if msg.ParamCount == 0 {
		replyPlain(env, c, ircerr.ErrNoOrigin)
		return false
	}
	c.Touch()
	return false
}
