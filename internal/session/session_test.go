package session

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func writeToken(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	token := `{"access_token":"test-token","token_type":"Bearer"}`
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		t.Fatalf("Failed to write token: %v", err)
	}
	return path
}

func TestSilentSignInFromPersistedToken(t *testing.T) {
	c := New(Options{TokenPath: writeToken(t), Logger: testLogger()})
	c.MarkReady()

	if c.Connected() {
		t.Fatal("fresh controller should be disconnected")
	}

	if err := c.SilentSignIn(context.Background()); err != nil {
		t.Fatalf("SilentSignIn: %v", err)
	}
	if !c.Connected() {
		t.Fatal("controller should be connected after silent sign-in")
	}

	cred, err := c.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if cred != "test-token" {
		t.Errorf("credential = %q, want test-token", cred)
	}
}

func TestSilentSignInWithoutTokenFails(t *testing.T) {
	c := New(Options{
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
		Logger:    testLogger(),
	})
	c.MarkReady()

	if err := c.SilentSignIn(context.Background()); err == nil {
		t.Fatal("expected error with no persisted token")
	}
	if c.Connected() {
		t.Error("failed sign-in must leave the session disconnected")
	}
}

func TestTokenQueuedUntilReady(t *testing.T) {
	c := New(Options{TokenPath: writeToken(t), Logger: testLogger()})

	// Sign in before the adapter layer is ready: the credential is queued,
	// not applied.
	if err := c.SilentSignIn(context.Background()); err != nil {
		t.Fatalf("SilentSignIn: %v", err)
	}
	if c.Connected() {
		t.Fatal("credential must not apply before MarkReady")
	}

	var mu sync.Mutex
	var states []State
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	c.MarkReady()

	if !c.Connected() {
		t.Fatal("queued credential should apply on MarkReady")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != StateConnected {
		t.Errorf("state changes = %v, want [connected]", states)
	}
}

func TestNotifyAuthExpiredFlipsExactlyOnce(t *testing.T) {
	c := New(Options{TokenPath: writeToken(t), Logger: testLogger()})
	c.MarkReady()
	if err := c.SilentSignIn(context.Background()); err != nil {
		t.Fatalf("SilentSignIn: %v", err)
	}

	var mu sync.Mutex
	changes := 0
	c.OnStateChange(func(State) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	// Concurrent 401s from parallel adapter calls collapse into a single
	// transition.
	c.NotifyAuthExpired()
	c.NotifyAuthExpired()
	c.NotifyAuthExpired()

	if c.Connected() {
		t.Error("session should be disconnected")
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Errorf("state changed %d times, want 1", changes)
	}

	if _, err := c.Credential(context.Background()); err != ErrDisconnected {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func TestSignOutRemovesToken(t *testing.T) {
	path := writeToken(t)
	c := New(Options{TokenPath: path, Logger: testLogger()})
	c.MarkReady()
	if err := c.SilentSignIn(context.Background()); err != nil {
		t.Fatalf("SilentSignIn: %v", err)
	}

	c.SignOut()

	if c.Connected() {
		t.Error("session should be disconnected after sign-out")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("token file should be removed on sign-out")
	}
	if c.Identity() != nil {
		t.Error("identity should be cleared on sign-out")
	}
}
