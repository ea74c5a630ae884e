package dispatch

import (
	"net"
	"strings"
	"testing"

	"github.com/fenag/yaIRCd-sub000/internal/channel"
	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/clients"
	"github.com/fenag/yaIRCd-sub000/internal/ircmsg"
)

func newEnv() *Env {
	return &Env{
		ServerName: "irc.test",
		NetName:    "TestNet",
		ServDesc:   "test server",
		Created:    "today",
		ChanLimit:  3,
		Clients:    clients.New(),
		Channels:   channel.NewEngine(),
	}
}

func newConn(t *testing.T) *client.Client {
	t.Helper()
	server, _ := net.Pipe()
	t.Cleanup(func() { server.Close() })
	return client.New(1, server, false, "host", "cloaked", nil)
}

func drain(c *client.Client) []string {
	var lines []string
	c.Queue.Drain(func(s string) { lines = append(lines, s) })
	return lines
}

func parse(t *testing.T, line string) *ircmsg.Message {
	t.Helper()
	m, err := ircmsg.Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return m
}

func TestRegistrationFlow(t *testing.T) {
	env := newEnv()
	c := newConn(t)

	Dispatch(env, c, parse(t, "NICK alice"))
	if c.Registered() {
		t.Fatal("expected not registered after NICK alone")
	}
	if len(drain(c)) != 0 {
		t.Fatal("expected no reply to NICK alone")
	}

	Dispatch(env, c, parse(t, "USER alice 0 * :Alice Example"))
	if !c.Registered() {
		t.Fatal("expected registered after NICK+USER")
	}
	lines := drain(c)
	if len(lines) < 4 {
		t.Fatalf("expected at least 4 welcome lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], " 001 ") {
		t.Fatalf("expected RPL_WELCOME first, got %q", lines[0])
	}
}

func TestNickCollision(t *testing.T) {
	env := newEnv()
	alice := newConn(t)
	Dispatch(env, alice, parse(t, "NICK alice"))
	Dispatch(env, alice, parse(t, "USER alice 0 * :Alice"))
	drain(alice)

	charlie := newConn(t)
	Dispatch(env, charlie, parse(t, "NICK alice"))
	lines := drain(charlie)
	if len(lines) != 1 || !strings.Contains(lines[0], " 433 ") {
		t.Fatalf("expected ERR_NICKNAMEINUSE, got %v", lines)
	}
	if charlie.Registered() {
		t.Fatal("expected charlie to remain unregistered")
	}
}

func register(t *testing.T, env *Env, nick string) *client.Client {
	t.Helper()
	c := newConn(t)
	Dispatch(env, c, parse(t, "NICK "+nick))
	Dispatch(env, c, parse(t, "USER "+strings.ToLower(nick)+" 0 * :"+nick))
	drain(c)
	return c
}

func TestJoinAndBroadcast(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")

	Dispatch(env, alice, parse(t, "JOIN #room"))
	joinLines := drain(alice)
	if len(joinLines) == 0 || !strings.Contains(joinLines[0], "JOIN :#room") {
		t.Fatalf("expected join echo, got %v", joinLines)
	}

	Dispatch(env, bob, parse(t, "JOIN #room"))
	drain(bob)
	aliceLines := drain(alice)
	if len(aliceLines) != 1 || !strings.Contains(aliceLines[0], "JOIN :#room") {
		t.Fatalf("expected alice notified of bob join, got %v", aliceLines)
	}

	Dispatch(env, alice, parse(t, "PRIVMSG #room :hello"))
	bobLines := drain(bob)
	if len(bobLines) != 1 || !strings.Contains(bobLines[0], "PRIVMSG #room :hello") {
		t.Fatalf("expected bob to receive broadcast, got %v", bobLines)
	}
	if len(drain(alice)) != 0 {
		t.Fatal("expected sender to receive nothing")
	}
}

func TestPrivmsgUnknownTarget(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")

	Dispatch(env, alice, parse(t, "PRIVMSG ghost :hi"))
	lines := drain(alice)
	if len(lines) != 1 || !strings.Contains(lines[0], " 401 alice ghost ") {
		t.Fatalf("expected ERR_NOSUCHNICK, got %v", lines)
	}
}

func TestPrivmsgEnvelopeCapped(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")
	bob := register(t, env, "bob")

	text := strings.Repeat("x", 510)
	Dispatch(env, alice, parse(t, "PRIVMSG bob :"+text))
	lines := drain(bob)
	if len(lines) != 1 {
		t.Fatalf("expected one delivered line, got %v", lines)
	}
	if len(lines[0]) > 512 {
		t.Fatalf("expected line capped at 512 bytes, got %d: %q", len(lines[0]), lines[0])
	}
	if !strings.HasSuffix(lines[0], "\r\n") {
		t.Fatalf("expected capped line to still terminate with CRLF, got %q", lines[0])
	}
}

func TestQuitTerminates(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")

	if !Dispatch(env, alice, parse(t, "QUIT :bye")) {
		t.Fatal("expected QUIT to signal termination")
	}
	if alice.QuitReason() != "bye" {
		t.Fatalf("expected quit reason recorded, got %q", alice.QuitReason())
	}
}

func TestChanLimitEnforced(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")

	Dispatch(env, alice, parse(t, "JOIN #a"))
	drain(alice)
	Dispatch(env, alice, parse(t, "JOIN #b"))
	drain(alice)
	Dispatch(env, alice, parse(t, "JOIN #c"))
	drain(alice)
	Dispatch(env, alice, parse(t, "JOIN #d"))
	lines := drain(alice)
	if len(lines) != 1 || !strings.Contains(lines[0], " 405 ") {
		t.Fatalf("expected ERR_TOOMANYCHANNELS, got %v", lines)
	}
}

func TestPartUnknownChannel(t *testing.T) {
	env := newEnv()
	alice := register(t, env, "alice")

	Dispatch(env, alice, parse(t, "PART #nope"))
	lines := drain(alice)
	if len(lines) != 1 || !strings.Contains(lines[0], " 442 ") {
		t.Fatalf("expected ERR_NOTONCHANNEL, got %v", lines)
	}
}
