// Package jules models tasks on the Jules dashboard and drives their
// lifecycle through scripted browser interaction.
package jules

import "time"

// Status is a task's lifecycle state as shown by the dashboard. Scraped
// values outside these constants are carried verbatim; the driver reports
// what the page says rather than enforcing transitions.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusPaused          Status = "paused"
	StatusWaitingApproval Status = "waiting_approval"
	// StatusUnknown is reported when the page shows no status indicator.
	StatusUnknown Status = "unknown"
)

// Chat message origins.
const (
	MessageTypeUser   = "user"
	MessageTypeJules  = "jules"
	MessageTypeSystem = "system"
)

// Source file change states. Scraping cannot currently detect the real
// state, so extracted files default to FileModified.
const (
	FileModified  = "modified"
	FileCreated   = "created"
	FileDeleted   = "deleted"
	FileUnchanged = "unchanged"
)

// ChatMessage is one extracted chat entry. Timestamps are scrape-time, not
// the original message time.
type ChatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
}

// SourceFile is one file link extracted from a task page. Diff is only
// populated when the dashboard exposes it.
type SourceFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Diff     string `json:"diff,omitempty"`
}

// Task is the local view of a dashboard task. Created by CreateTask,
// refreshed by GetTask (status, chat history, source files and UpdatedAt are
// overwritten from the live page), never deleted by the driver.
type Task struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Repository  string        `json:"repository"`
	Branch      string        `json:"branch"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	URL         string        `json:"url"`
	ChatHistory []ChatMessage `json:"chatHistory"`
	SourceFiles []SourceFile  `json:"sourceFiles"`
}

// TaskStore is the driver's view of the local task cache. The flat-file
// implementation lives in internal/store; the driver only merges and
// updates through this interface, it never owns the file.
type TaskStore interface {
	Upsert(task Task) error
	Get(id string) (*Task, bool, error)
	List(status string, limit int) ([]Task, error)
	Delete(id string) (bool, error)
}
