package channel

import (
	"net"
	"strings"
	"testing"

	"github.com/fenag/yaIRCd-sub000/internal/client"
)

func newTestClient(t *testing.T, nick string) *client.Client {
	t.Helper()
	server, _ := net.Pipe()
	t.Cleanup(func() { server.Close() })
	c := client.New(1, server, false, "host", "cloaked", nil)
	c.SetNick(nick, client.FoldNick(nick))
	c.Username = strings.ToLower(nick)
	c.MarkRegistered()
	return c
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"#general": true,
		"#a":       true,
		"general":  false,
		"#":        false,
		"":         false,
		"#has space": false,
		"#has,comma": false,
	}
	for in, want := range cases {
		if got := ValidName(in); got != want {
			t.Fatalf("ValidName(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestJoinCreatesChannel(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")

	res, members := e.Join("#general", alice)
	if res != JoinOK {
		t.Fatalf("expected JoinOK, got %v", res)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if e.Count() != 1 {
		t.Fatalf("expected 1 channel, got %d", e.Count())
	}
}

func TestJoinExistingChannelAddsMember(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")

	e.Join("#general", alice)
	res, members := e.Join("#general", bob)
	if res != JoinOK {
		t.Fatalf("expected JoinOK, got %v", res)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if alice.Queue.IsEmpty() {
		t.Fatal("expected alice notified of bob's join")
	}
}

func TestJoinAlreadyMemberRejected(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")

	e.Join("#general", alice)
	res, _ := e.Join("#general", alice)
	if res != JoinAlreadyMember {
		t.Fatalf("expected JoinAlreadyMember, got %v", res)
	}
}

func TestPartRemovesMemberAndNotifies(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")
	e.Join("#general", alice)
	e.Join("#general", bob)

	res := e.Part("#general", bob, ":Bob!bob@cloaked PART #general :bye\r\n")
	if res != PartOK {
		t.Fatalf("expected PartOK, got %v", res)
	}
	if alice.Queue.IsEmpty() {
		t.Fatal("expected alice notified of bob's part")
	}
	if _, _, ok := e.Lookup("#general"); !ok {
		t.Fatal("expected channel to survive with alice still present")
	}
}

func TestPartLastMemberDestroysChannel(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	e.Join("#general", alice)

	res := e.Part("#general", alice, ":Alice!alice@cloaked PART #general\r\n")
	if res != PartOK {
		t.Fatalf("expected PartOK, got %v", res)
	}
	if _, _, ok := e.Lookup("#general"); ok {
		t.Fatal("expected channel destroyed after last part")
	}
	if e.Count() != 0 {
		t.Fatalf("expected 0 channels, got %d", e.Count())
	}
}

func TestPartNotOnChannel(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")
	e.Join("#general", alice)

	res := e.Part("#general", bob, "irrelevant")
	if res != PartNotOnChannel {
		t.Fatalf("expected PartNotOnChannel, got %v", res)
	}
}

func TestPartNoSuchChannel(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")

	if res := e.Part("#nope", alice, "irrelevant"); res != PartNoSuchChannel {
		t.Fatalf("expected PartNoSuchChannel, got %v", res)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")
	e.Join("#general", alice)
	e.Join("#general", bob)
	// draining bob's join notice delivered to alice
	alice.Queue.Drain(func(string) {})

	if res := e.Broadcast("#general", alice, "hello"); res != BroadcastOK {
		t.Fatalf("expected BroadcastOK, got %v", res)
	}
	if alice.Queue.IsEmpty() == false && alice.Queue.Len() != 0 {
		t.Fatal("sender should not receive its own broadcast")
	}
	if bob.Queue.IsEmpty() {
		t.Fatal("expected bob to receive the broadcast")
	}
}

func TestBroadcastCapsEnvelope(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")
	e.Join("#general", alice)
	e.Join("#general", bob)
	alice.Queue.Drain(func(string) {})
	bob.Queue.Drain(func(string) {})

	text := strings.Repeat("x", 510)
	if res := e.Broadcast("#general", alice, text); res != BroadcastOK {
		t.Fatalf("expected BroadcastOK, got %v", res)
	}
	var lines []string
	bob.Queue.Drain(func(s string) { lines = append(lines, s) })
	if len(lines) != 1 {
		t.Fatalf("expected one delivered line, got %v", lines)
	}
	if len(lines[0]) > 512 {
		t.Fatalf("expected line capped at 512 bytes, got %d", len(lines[0]))
	}
}

func TestBroadcastNoSuchChannel(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	if res := e.Broadcast("#nope", alice, "hi"); res != BroadcastNoSuchChannel {
		t.Fatalf("expected BroadcastNoSuchChannel, got %v", res)
	}
}

func TestListEnumeratesAllChannels(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")
	bob := newTestClient(t, "Bob")
	e.Join("#a", alice)
	e.Join("#b", bob)

	seen := map[string]int{}
	e.List(func(name, topic string, count int) {
		seen[name] = count
	})
	if len(seen) != 2 {
		t.Fatalf("expected 2 channels listed, got %d", len(seen))
	}
	if seen["#a"] != 1 || seen["#b"] != 1 {
		t.Fatalf("unexpected member counts: %v", seen)
	}
}

func TestJoinThenPartRoundTrip(t *testing.T) {
	e := NewEngine()
	alice := newTestClient(t, "Alice")

	if res, _ := e.Join("#general", alice); res != JoinOK {
		t.Fatalf("expected JoinOK, got %v", res)
	}
	if res := e.Part("#general", alice, "bye"); res != PartOK {
		t.Fatalf("expected PartOK, got %v", res)
	}
	if res, _ := e.Join("#general", alice); res != JoinOK {
		t.Fatalf("expected re-JoinOK after channel was destroyed and recreated, got %v", res)
	}
}
