package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julestools/julesmcp/internal/jules"
)

func task(id string, status jules.Status, updated time.Time) jules.Task {
	return jules.Task{
		ID:        id,
		Title:     "task " + id,
		Status:    status,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "tasks.json"))

	tasks, err := s.List("", 0)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, found, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := New(path)
	_, err := s.List("", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestNullTasksTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks": null}`), 0600))

	tasks, err := New(path).List("", 0)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpsertGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.json")
	s := New(path)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(task("a1", jules.StatusPending, now)))

	got, found, err := s.Get("a1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "task a1", got.Title)

	// Replace, not duplicate.
	updated := task("a1", jules.StatusCompleted, now.Add(time.Minute))
	require.NoError(t, s.Upsert(updated))
	tasks, err := s.List("", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, jules.StatusCompleted, tasks[0].Status)

	removed, err := s.Delete("a1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete("a1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := New(path)
	require.NoError(t, s.Upsert(task("a1", jules.StatusPending, time.Now())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "tasks")

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(doc["tasks"], &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "a1", tasks[0]["id"])
	assert.Equal(t, "pending", tasks[0]["status"])
}

func TestListFilterSortLimit(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "tasks.json"))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(task("p1", jules.StatusPending, base.Add(3*time.Minute))))
	require.NoError(t, s.Upsert(task("c1", jules.StatusCompleted, base.Add(1*time.Minute))))
	require.NoError(t, s.Upsert(task("c2", jules.StatusCompleted, base.Add(2*time.Minute))))

	all, err := s.List("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p1", all[0].ID)
	assert.Equal(t, "c2", all[1].ID)
	assert.Equal(t, "c1", all[2].ID)

	completed, err := s.List("completed", 1)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "c2", completed[0].ID)

	none, err := s.List("paused", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWatchedStoreSeesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	s := NewWatched(path)
	defer s.Close()

	tasks, err := s.List("", 0)
	require.NoError(t, err)
	require.Empty(t, tasks)

	// Write behind the store's back, as an external tool would.
	external := document{Tasks: []jules.Task{task("x9", jules.StatusInProgress, time.Now())}}
	data, err := json.MarshalIndent(external, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	require.Eventually(t, func() bool {
		got, err := s.List("", 0)
		return err == nil && len(got) == 1 && got[0].ID == "x9"
	}, 2*time.Second, 20*time.Millisecond)
}
