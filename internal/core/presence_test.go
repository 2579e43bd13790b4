package core

import (
	"reflect"
	"sync"
	"testing"
)

func TestPresenceOnlineLookupOffline(t *testing.T) {
	p := NewPresenceRegistry()

	p.RecordOnline("u1", "s1")
	if sid, ok := p.Lookup("u1"); !ok || sid != "s1" {
		t.Fatalf("expected s1, got %q ok=%v", sid, ok)
	}

	if !p.RecordOffline("u1", "s1") {
		t.Fatal("expected offline to remove the entry")
	}
	if _, ok := p.Lookup("u1"); ok {
		t.Fatal("expected lookup to miss after offline")
	}

	// Offline for an unknown user is a no-op, not an error.
	if p.RecordOffline("ghost", "s9") {
		t.Fatal("offline for unknown user should report nothing removed")
	}
}

func TestPresenceNewestSessionWins(t *testing.T) {
	p := NewPresenceRegistry()

	p.RecordOnline("u1", "s1")
	p.RecordOnline("u1", "s2")

	if sid, _ := p.Lookup("u1"); sid != "s2" {
		t.Fatalf("expected newest session s2, got %q", sid)
	}

	// The old session disconnecting must not mark the user offline.
	if p.RecordOffline("u1", "s1") {
		t.Fatal("stale session should not clear presence")
	}
	if sid, ok := p.Lookup("u1"); !ok || sid != "s2" {
		t.Fatalf("expected s2 to remain, got %q ok=%v", sid, ok)
	}
}

func TestPresenceListOnlineSnapshot(t *testing.T) {
	p := NewPresenceRegistry()
	p.RecordOnline("charlie", "s3")
	p.RecordOnline("alice", "s1")
	p.RecordOnline("bob", "s2")
	p.RecordOffline("bob", "s2")

	got := p.ListOnline()
	want := []string{"alice", "charlie"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPresenceConcurrentAccess(t *testing.T) {
	p := NewPresenceRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				p.RecordOnline(user, "s")
				p.Lookup(user)
				p.ListOnline()
				p.RecordOffline(user, "s")
			}
		}(i)
	}
	wg.Wait()

	if n := len(p.ListOnline()); n != 0 {
		t.Fatalf("expected empty registry, got %d entries", n)
	}
}
