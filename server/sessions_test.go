package server

import (
	"testing"
	"time"
)

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	a := s.Create("a", nil)
	b := s.Create("b", nil)
	if a.ID == b.ID {
		t.Fatal("session ids collide")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if got, ok := s.Get(a.ID); !ok || got.Name != "a" {
		t.Errorf("Get(%s) = %v, %v", a.ID, got, ok)
	}
	if !s.Destroy(a.ID) {
		t.Error("Destroy of a live session returned false")
	}
	if s.Destroy(a.ID) {
		t.Error("second Destroy returned true")
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("destroyed session is still reachable")
	}
}

func TestSessionSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	idle := s.Create("idle", nil)
	busy := s.Create("busy", nil)

	now = now.Add(20 * time.Minute)
	s.Get(busy.ID)

	now = now.Add(15 * time.Minute)
	if n := s.Sweep(30 * time.Minute); n != 1 {
		t.Errorf("Sweep removed %d sessions, want 1", n)
	}
	if _, ok := s.Get(idle.ID); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := s.Get(busy.ID); !ok {
		t.Error("recently used session was swept")
	}
}

func TestStartSweeperStopIsIdempotent(t *testing.T) {
	s := NewSessionStore()
	stop := s.StartSweeper(time.Millisecond, time.Hour)
	stop()
	stop()
}
