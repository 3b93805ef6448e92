package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/julestools/julesmcp/internal/browser"
	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/jules"
)

// stubAuto overrides only the calls the exercised tools reach; anything else
// panics through the embedded nil interface.
type stubAuto struct {
	browser.Automation
	url     string
	filled  map[string]string
	pressed []string
}

func (a *stubAuto) Navigate(ctx context.Context, url string) error {
	a.url = url
	return nil
}

func (a *stubAuto) WaitSettled(ctx context.Context) error { return nil }

func (a *stubAuto) Fill(ctx context.Context, selector, value string) error {
	if a.filled == nil {
		a.filled = map[string]string{}
	}
	a.filled[selector] = value
	return nil
}

func (a *stubAuto) Press(ctx context.Context, key string) error {
	a.pressed = append(a.pressed, key)
	return nil
}

type stubSession struct {
	auto   *stubAuto
	active bool
}

func (s *stubSession) Do(ctx context.Context, name string, fn func(browser.Automation) error) error {
	return fn(s.auto)
}

func (s *stubSession) Active() bool { return s.active }

type memStore struct {
	tasks map[string]jules.Task
}

func newMemStore() *memStore { return &memStore{tasks: map[string]jules.Task{}} }

func (m *memStore) Upsert(task jules.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) Get(id string) (*jules.Task, bool, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (m *memStore) List(status string, limit int) ([]jules.Task, error) {
	var out []jules.Task
	for _, t := range m.tasks {
		if status != "" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Delete(id string) (bool, error) {
	if _, ok := m.tasks[id]; !ok {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}

func newTestServer(t *testing.T) (*Server, *memStore, *stubAuto) {
	t.Helper()
	auto := &stubAuto{}
	store := newMemStore()
	driver := jules.NewDriver(config.Default(), &stubSession{auto: auto}, store)
	driver.MessageDelay = 0
	return NewServer(driver, "test"), store, auto
}

func TestToolCatalog(t *testing.T) {
	s, _, _ := newTestServer(t)

	defs := s.tools()
	if len(defs) != 13 {
		t.Fatalf("tools() returned %d definitions, want 13", len(defs))
	}

	seen := map[string]bool{}
	for _, def := range defs {
		if !strings.HasPrefix(def.name, "jules_") {
			t.Errorf("tool %q does not carry the jules_ prefix", def.name)
		}
		if seen[def.name] {
			t.Errorf("tool %q registered twice", def.name)
		}
		seen[def.name] = true

		if def.description == "" {
			t.Errorf("tool %q has no description", def.name)
		}
		if def.schema["type"] != "object" {
			t.Errorf("tool %q schema type = %v, want object", def.name, def.schema["type"])
		}
		if def.run == nil {
			t.Errorf("tool %q has no run method", def.name)
		}
	}
}

func TestListTasksReturnsJSON(t *testing.T) {
	s, store, _ := newTestServer(t)

	now := time.Now()
	store.Upsert(jules.Task{ID: "a", Status: jules.StatusPending, UpdatedAt: now.Add(time.Minute)})
	store.Upsert(jules.Task{ID: "b", Status: jules.StatusCompleted, UpdatedAt: now})

	out, err := s.listTasks(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("listTasks: %v", err)
	}

	var tasks []jules.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("output is not task JSON: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "a" {
		t.Errorf("first task = %s, want the most recently updated (a)", tasks[0].ID)
	}
}

func TestListTasksFilterAndLimit(t *testing.T) {
	s, store, _ := newTestServer(t)

	now := time.Now()
	store.Upsert(jules.Task{ID: "p1", Status: jules.StatusPending, UpdatedAt: now.Add(3 * time.Minute)})
	store.Upsert(jules.Task{ID: "c1", Status: jules.StatusCompleted, UpdatedAt: now.Add(time.Minute)})
	store.Upsert(jules.Task{ID: "c2", Status: jules.StatusCompleted, UpdatedAt: now.Add(2 * time.Minute)})

	out, err := s.listTasks(context.Background(), json.RawMessage(`{"status":"completed","limit":1}`))
	if err != nil {
		t.Fatalf("listTasks: %v", err)
	}

	var tasks []jules.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("output is not task JSON: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "c2" {
		t.Fatalf("got %+v, want exactly the most recent completed task c2", tasks)
	}
}

func TestDeleteTaskMessages(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.Upsert(jules.Task{ID: "abc123", Status: jules.StatusPending})

	out, err := s.deleteTask(context.Background(), json.RawMessage(`{"taskId":"https://jules.google.com/task/abc123"}`))
	if err != nil {
		t.Fatalf("deleteTask: %v", err)
	}
	if !strings.Contains(out, "abc123") || !strings.Contains(out, "deleted") {
		t.Errorf("delete message = %q", out)
	}

	// Deleting again is not an error, just a different message.
	out, err = s.deleteTask(context.Background(), json.RawMessage(`{"taskId":"abc123"}`))
	if err != nil {
		t.Fatalf("second deleteTask: %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("second delete message = %q, want a not-found note", out)
	}
}

func TestSendMessageReportsResolvedID(t *testing.T) {
	s, _, auto := newTestServer(t)

	out, err := s.sendMessage(context.Background(), json.RawMessage(`{"taskId":"https://jules.google.com/task/abc123","message":"hello"}`))
	if err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	if out != "message sent to task abc123" {
		t.Errorf("message = %q", out)
	}
	if len(auto.filled) == 0 {
		t.Error("no fill reached the page")
	}
	if len(auto.pressed) == 0 {
		t.Error("no key press reached the page")
	}
}

func TestSessionInfoReportsInactiveBrowser(t *testing.T) {
	s, _, _ := newTestServer(t)

	out, err := s.sessionInfo(context.Background(), nil)
	if err != nil {
		t.Fatalf("sessionInfo: %v", err)
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if info["browserActive"] != false {
		t.Errorf("browserActive = %v, want false", info["browserActive"])
	}
	if info["mode"] != "fresh" {
		t.Errorf("mode = %v, want fresh", info["mode"])
	}
}

func TestCreateTaskValidationSkipsBrowser(t *testing.T) {
	s, _, auto := newTestServer(t)

	_, err := s.createTask(context.Background(), json.RawMessage(`{"repository":"org/repo"}`))
	if err == nil {
		t.Fatal("createTask without a description succeeded")
	}
	if !strings.Contains(err.Error(), "description") {
		t.Errorf("error = %v, want a description complaint", err)
	}
	if auto.url != "" {
		t.Error("validation failure still navigated the page")
	}
}

func TestBulkCreateRequiresTasks(t *testing.T) {
	s, _, _ := newTestServer(t)

	_, err := s.bulkCreateTasks(context.Background(), json.RawMessage(`{"tasks":[]}`))
	if err == nil || !strings.Contains(err.Error(), "tasks") {
		t.Fatalf("empty bulk request error = %v", err)
	}
}

func TestUnmarshalArgsRejectsGarbage(t *testing.T) {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := unmarshalArgs(json.RawMessage(`{"taskId":42}`), &in); err == nil {
		t.Fatal("mistyped arguments were accepted")
	}
	if err := unmarshalArgs(nil, &in); err != nil {
		t.Fatalf("empty arguments rejected: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("truncate long = %q", got)
	}
}
