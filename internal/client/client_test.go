package client

import (
	"net"
	"testing"
)

func TestFoldNickScandinavianEquivalence(t *testing.T) {
	cases := map[string]string{
		"{alice}": "[alice]",
		"a|b":     "a\\b",
		"a^b":     "a~b",
		"ALICE":   "alice",
	}
	for in, want := range cases {
		if got := FoldNick(in); got != FoldNick(want) {
			t.Fatalf("FoldNick(%q)=%q, FoldNick(%q)=%q; want equal", in, got, want, FoldNick(want))
		}
	}
}

func TestFoldNickReflexiveAndTransitive(t *testing.T) {
	a, b, c := "Alice", "alice", "ALICE"
	if FoldNick(a) != FoldNick(b) || FoldNick(b) != FoldNick(c) {
		t.Fatalf("expected transitive equivalence across %q %q %q", a, b, c)
	}
	if FoldNick(a) != FoldNick(a) {
		t.Fatal("expected reflexive equivalence")
	}
}

func TestValidNickChar(t *testing.T) {
	for _, b := range []byte("Az09-[]\\`^{}|") {
		if !ValidNickChar(b) {
			t.Fatalf("expected %q valid", b)
		}
	}
	for _, b := range []byte(" :,!@#~") {
		if ValidNickChar(b) {
			t.Fatalf("expected %q invalid", b)
		}
	}
}

func TestClientRegistrationLifecycle(t *testing.T) {
	server, _ := net.Pipe()
	defer server.Close()

	c := New(1, server, false, "host.example.com", "cloaked.example.com", nil)
	if c.Registered() {
		t.Fatal("expected new client unregistered")
	}
	c.SetNick("Alice", FoldNick("Alice"))
	c.Username = "alice"
	c.MarkRegistered()
	if !c.Registered() {
		t.Fatal("expected registered after MarkRegistered")
	}
	if c.Hostmask() != "Alice!alice@cloaked.example.com" {
		t.Fatalf("unexpected hostmask: %q", c.Hostmask())
	}
}

func TestClientChannelSet(t *testing.T) {
	server, _ := net.Pipe()
	defer server.Close()
	c := New(1, server, false, "h", "c", nil)

	c.AddChannel("#room")
	if !c.HasChannel("#room") || c.ChannelCount() != 1 {
		t.Fatal("expected #room joined")
	}
	c.RemoveChannel("#room")
	if c.HasChannel("#room") || c.ChannelCount() != 0 {
		t.Fatal("expected #room parted")
	}
}

func TestClientSendEnqueuesAndWakes(t *testing.T) {
	server, _ := net.Pipe()
	defer server.Close()
	c := New(1, server, false, "h", "c", nil)

	c.Send("hello")
	select {
	case <-c.Wake.C():
	default:
		t.Fatal("expected wakeup fired by Send")
	}
	if c.Queue.IsEmpty() {
		t.Fatal("expected message queued by Send")
	}
}
