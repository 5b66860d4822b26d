package settings

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func TestResolutionOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	// No file, no configured default: primary.
	s, err := Open(path, "", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Selected(); got != "primary" {
		t.Errorf("selected = %q, want primary", got)
	}
	s.Close()

	// No file, configured default wins over primary.
	s, err = Open(path, "family@group.calendar.google.com", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Selected(); got != "family@group.calendar.google.com" {
		t.Errorf("selected = %q, want configured default", got)
	}
	s.Close()

	// Stored file wins over the configured default.
	if err := os.WriteFile(path, []byte("selected_calendar_id: us@gmail.com\n"), 0o600); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}
	s, err = Open(path, "family@group.calendar.google.com", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if got := s.Selected(); got != "us@gmail.com" {
		t.Errorf("selected = %q, want stored value", got)
	}
}

func TestSelectPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := Open(path, "", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Select("us@gmail.com"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	s.Close()

	s, err = Open(path, "", testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := s.Selected(); got != "us@gmail.com" {
		t.Errorf("selection did not survive reopen: %q", got)
	}
}

func TestSelectNotifiesOnlyOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path, "", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var mu sync.Mutex
	var seen []string
	s.OnChange(func(id string) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
	})

	if err := s.Select("a@gmail.com"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := s.Select("a@gmail.com"); err != nil {
		t.Fatalf("repeat Select: %v", err)
	}
	if err := s.Select("b@gmail.com"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := s.Select(""); err == nil {
		t.Error("empty calendar id should be rejected")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a@gmail.com" || seen[1] != "b@gmail.com" {
		t.Errorf("notifications = %v, want [a@gmail.com b@gmail.com]", seen)
	}
}

func TestWatchPicksUpExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path, "", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	changed := make(chan string, 1)
	s.OnChange(func(id string) {
		select {
		case changed <- id:
		default:
		}
	})

	if err := s.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("selected_calendar_id: external@gmail.com\n"), 0o600); err != nil {
		t.Fatalf("external write: %v", err)
	}

	select {
	case id := <-changed:
		if id != "external@gmail.com" {
			t.Errorf("change = %q, want external@gmail.com", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("external write never observed")
	}

	if got := s.Selected(); got != "external@gmail.com" {
		t.Errorf("selected = %q after external write", got)
	}
}
