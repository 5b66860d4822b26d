package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/soulsync-app/soulsync/internal/assistant"
	"github.com/soulsync-app/soulsync/internal/bridge"
	"github.com/soulsync-app/soulsync/internal/reconcile"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/settings"
	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

type noopRemote struct{}

func (noopRemote) ListEvents(ctx context.Context, token, calendarID string) ([]types.CalendarEvent, error) {
	return nil, nil
}
func (noopRemote) ListCalendars(ctx context.Context, token string) ([]types.CalendarSummary, error) {
	return nil, nil
}
func (noopRemote) CreateEvent(ctx context.Context, token, calendarID string, draft types.EventDraft) (string, error) {
	return "remote-1", nil
}
func (noopRemote) PatchEvent(ctx context.Context, token, calendarID, eventID string, patch types.EventPatch) error {
	return nil
}
func (noopRemote) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	return nil
}

type noopTasks struct{}

func (noopTasks) InsertTask(ctx context.Context, token, title string, status types.TaskStatus) (string, error) {
	return "gtask-1", nil
}
func (noopTasks) PatchTask(ctx context.Context, token, taskID, title string, status types.TaskStatus) error {
	return nil
}
func (noopTasks) DeleteTask(ctx context.Context, token, taskID string) error {
	return nil
}

type cannedCompleter struct{ reply string }

func (c cannedCompleter) Complete(ctx context.Context, system string, turns []types.ChatMessage) (string, error) {
	return c.reply, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(os.Stderr, "[test] ", log.LstdFlags)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sess := session.New(session.Options{
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
		Logger:    logger,
	})
	sess.MarkReady()

	sel, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"), "", logger)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	t.Cleanup(func() { sel.Close() })

	rec := reconcile.New(noopRemote{}, sess, sel, st, logger)
	tasks := bridge.New(st, sess, noopTasks{}, logger)
	asst := assistant.NewWithCompleter(cannedCompleter{reply: "Tacos at 6:30."}, st, "Austin", "Angie", logger)

	server := NewServer(Config{
		Addr:       "127.0.0.1:0",
		Reconciler: rec,
		Tasks:      tasks,
		Store:      st,
		Session:    sess,
		Settings:   sel,
		Assistant:  asst,
		Logger:     logger,
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := testServer(t)
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(t)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestWebSocketReceivesInitialState(t *testing.T) {
	server := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The first frames carry the current status and snapshots.
	seen := map[MessageType]bool{}
	for i := 0; i < 3; i++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		seen[msg.Type] = true
	}
	if !seen[MessageTypeStatus] {
		t.Error("initial frames should include a status message")
	}
	if !seen[MessageTypeEvents] {
		t.Error("initial frames should include an events snapshot")
	}
}

func TestTaskAPICreateAndList(t *testing.T) {
	server := testServer(t)
	base := "http://" + server.GetAddr()

	body := strings.NewReader(`{"content":"Buy flowers","status":"todo","owner":"Austin"}`)
	resp, err := http.Post(base+"/api/tasks", "application/json", body)
	if err != nil {
		t.Fatalf("POST /api/tasks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var created types.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Error("created task should carry an id")
	}
	if created.ExternalTaskID != "" {
		t.Error("disconnected session: task must be local-only")
	}

	resp, err = http.Get(base + "/api/tasks")
	if err != nil {
		t.Fatalf("GET /api/tasks: %v", err)
	}
	defer resp.Body.Close()
	var tasks []types.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Content != "Buy flowers" {
		t.Errorf("list = %+v", tasks)
	}
}

func TestSyncEndpointDisconnected(t *testing.T) {
	server := testServer(t)

	resp, err := http.Post("http://"+server.GetAddr()+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("disconnected sync status = %d, want 409", resp.StatusCode)
	}
}

func TestChatEndpoint(t *testing.T) {
	server := testServer(t)
	base := "http://" + server.GetAddr()

	resp, err := http.Post(base+"/api/chat", "application/json",
		strings.NewReader(`{"question":"what's for dinner friday?"}`))
	if err != nil {
		t.Fatalf("POST /api/chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var reply map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply["reply"] != "Tacos at 6:30." {
		t.Errorf("reply = %q", reply["reply"])
	}

	resp, err = http.Get(base + "/api/chat/history")
	if err != nil {
		t.Fatalf("GET /api/chat/history: %v", err)
	}
	defer resp.Body.Close()
	var history []types.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[1].Role != "model" {
		t.Errorf("history = %+v", history)
	}
}

func TestDinnerPlanEndpointLocalSave(t *testing.T) {
	server := testServer(t)
	base := "http://" + server.GetAddr()

	req, err := http.NewRequest(http.MethodPut, base+"/api/dinner/plans/2026-05-01",
		strings.NewReader(`{"plan":"Tacos","time":"18:30"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT dinner plan: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	resp, err = http.Get(base + "/api/dinner/plans")
	if err != nil {
		t.Fatalf("GET plans: %v", err)
	}
	defer resp.Body.Close()
	var plans []types.DinnerPlan
	if err := json.NewDecoder(resp.Body).Decode(&plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != "2026-05-01" || plans[0].Plan != "Tacos" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	server := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Drain the initial frames.
	for i := 0; i < 3; i++ {
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("read initial frame: %v", err)
		}
	}

	payload, _ := json.Marshal([]types.CalendarEvent{{ID: "x", Title: "Ping", Date: "2026-01-01"}})
	server.Broadcast(Message{Type: MessageTypeEvents, Data: payload})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != MessageTypeEvents {
		t.Errorf("type = %q, want events_snapshot", msg.Type)
	}
	if !strings.Contains(string(msg.Data), "Ping") {
		t.Errorf("payload missing event: %s", msg.Data)
	}
}
