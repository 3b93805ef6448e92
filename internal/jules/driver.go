package jules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julestools/julesmcp/internal/browser"
	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/cookies"
	"github.com/julestools/julesmcp/internal/logging"
)

// Session runs operations against the managed browser page. Implemented by
// browser.Manager; tests substitute a fake that skips the real browser.
type Session interface {
	Do(ctx context.Context, name string, fn func(browser.Automation) error) error
	Active() bool
}

// OpError is any failed driver operation. The operation name rides along so
// callers can surface "<operation>: <cause>" without string assembly.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *OpError) Unwrap() error { return e.Err }

// OpOutcome reports a conditional operation that may legitimately find
// nothing to do.
type OpOutcome struct {
	Done bool   `json:"done"`
	Note string `json:"note"`
}

// TaskSpec is one entry of a bulk creation request.
type TaskSpec struct {
	Description string `json:"description"`
	Repository  string `json:"repository"`
	Branch      string `json:"branch"`
}

// BulkResult is the per-entry outcome of a bulk creation request.
type BulkResult struct {
	Index   int    `json:"index"`
	TaskID  string `json:"taskId,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CodeAnalysis summarizes the file and change information scraped from a
// task page.
type CodeAnalysis struct {
	TaskID      string       `json:"taskId"`
	URL         string       `json:"url"`
	SourceFiles []SourceFile `json:"sourceFiles"`
	Changes     []string     `json:"changes"`
	FileCount   int          `json:"fileCount"`
	ChangeCount int          `json:"changeCount"`
}

// Driver scripts task operations against the dashboard through a browser
// session and keeps the local task store in sync.
type Driver struct {
	cfg     *config.Config
	session Session
	store   TaskStore

	// MessageDelay is the pause after submitting a chat message. The
	// dashboard posts asynchronously and exposes no delivery signal.
	MessageDelay time.Duration
}

// NewDriver wires a driver over the given session and store.
func NewDriver(cfg *config.Config, session Session, store TaskStore) *Driver {
	return &Driver{
		cfg:          cfg,
		session:      session,
		store:        store,
		MessageDelay: 2 * time.Second,
	}
}

// op runs fn through the session gate and tags failures with the operation
// name.
func (d *Driver) op(ctx context.Context, name string, fn func(browser.Automation) error) error {
	if err := d.session.Do(ctx, name, fn); err != nil {
		return &OpError{Op: name, Err: err}
	}
	return nil
}

func (d *Driver) openTask(ctx context.Context, a browser.Automation, id string) error {
	if err := a.Navigate(ctx, TaskURL(d.cfg.BaseURL, id)); err != nil {
		return err
	}
	return a.WaitSettled(ctx)
}

// CreateTask drives the task-creation flow and persists the new task with
// status pending. Branch defaults to "main"; the dashboard's own branch
// picker is best-effort and the first listed branch wins.
func (d *Driver) CreateTask(ctx context.Context, description, repository, branch string) (*Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, &OpError{Op: "create_task", Err: fmt.Errorf("description is required")}
	}
	if strings.TrimSpace(repository) == "" {
		return nil, &OpError{Op: "create_task", Err: fmt.Errorf("repository is required")}
	}
	if branch == "" {
		branch = "main"
	}

	var task *Task
	err := d.op(ctx, "create_task", func(a browser.Automation) error {
		if err := a.Navigate(ctx, d.cfg.BaseURL); err != nil {
			return err
		}
		if err := a.WaitSettled(ctx); err != nil {
			return err
		}

		// The trigger only shows on the dashboard view, not on a blank
		// creation surface.
		if visible, err := a.Visible(ctx, selNewTaskButton); err == nil && visible {
			if err := a.Click(ctx, selNewTaskButton); err != nil {
				return err
			}
		}

		// Repository type-ahead: type, wait for suggestions, take the first.
		if err := a.Click(ctx, selRepoCombo); err != nil {
			return err
		}
		if err := a.Type(ctx, selRepoInput, repository, 20*time.Millisecond); err != nil {
			return err
		}
		if err := a.WaitVisible(ctx, selFirstOption, d.cfg.Timeout()); err != nil {
			return err
		}
		if err := a.Click(ctx, selFirstOption); err != nil {
			return err
		}

		if visible, err := a.Visible(ctx, selBranchCombo); err == nil && visible {
			if err := a.Click(ctx, selBranchCombo); err != nil {
				return err
			}
			if err := a.Click(ctx, selFirstOption); err != nil {
				return err
			}
		}

		if err := a.Fill(ctx, selTaskDescription, description); err != nil {
			return err
		}

		before, err := a.URL(ctx)
		if err != nil {
			return err
		}
		if err := a.Press(ctx, "Control+Enter"); err != nil {
			return err
		}

		var id string
		if after, err := a.WaitForURLChange(ctx, before, d.cfg.Timeout()); err == nil {
			if resolved := ResolveTaskID(after); resolved != after {
				id = resolved
			}
		}
		if id == "" {
			// Track the task locally even when the page never yields an id.
			id = uuid.New().String()[:8]
			logging.Warnf("create_task: no task id in post-submit url, using generated id %s", id)
		}

		now := time.Now()
		task = &Task{
			ID:          id,
			Title:       titleFrom(description),
			Description: description,
			Repository:  repository,
			Branch:      branch,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			URL:         TaskURL(d.cfg.BaseURL, id),
			ChatHistory: []ChatMessage{},
			SourceFiles: []SourceFile{},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := d.store.Upsert(*task); err != nil {
		return nil, &OpError{Op: "create_task", Err: err}
	}
	logging.Infof("created task %s in %s", task.ID, task.Repository)
	return task, nil
}

// GetTask refreshes a task from its live page and merges the scrape into the
// stored record when one exists.
func (d *Driver) GetTask(ctx context.Context, taskIDOrURL string) (*Task, error) {
	id := ResolveTaskID(taskIDOrURL)
	if strings.TrimSpace(id) == "" {
		return nil, &OpError{Op: "get_task", Err: fmt.Errorf("task id is required")}
	}

	var (
		status   Status
		messages []ChatMessage
		files    []SourceFile
	)
	err := d.op(ctx, "get_task", func(a browser.Automation) error {
		if err := d.openTask(ctx, a, id); err != nil {
			return err
		}

		var err error
		if messages, err = scrapeMessages(ctx, a); err != nil {
			return err
		}
		if files, err = scrapeFiles(ctx, a); err != nil {
			return err
		}
		status = scrapeStatus(ctx, a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	task := &Task{
		ID:          id,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		URL:         TaskURL(d.cfg.BaseURL, id),
		ChatHistory: messages,
		SourceFiles: files,
	}
	stored, found, err := d.store.Get(id)
	if err != nil {
		return nil, &OpError{Op: "get_task", Err: err}
	}
	if found {
		// Scraped fields overwrite; creation-time fields survive.
		task.Title = stored.Title
		task.Description = stored.Description
		task.Repository = stored.Repository
		task.Branch = stored.Branch
		task.CreatedAt = stored.CreatedAt
	}
	if err := d.store.Upsert(*task); err != nil {
		return nil, &OpError{Op: "get_task", Err: err}
	}
	return task, nil
}

// SendMessage submits a chat message to the task. There is no confirmation
// signal; success means the input was filled and submitted.
func (d *Driver) SendMessage(ctx context.Context, taskIDOrURL, message string) error {
	if strings.TrimSpace(message) == "" {
		return &OpError{Op: "send_message", Err: fmt.Errorf("message is required")}
	}
	id := ResolveTaskID(taskIDOrURL)
	if strings.TrimSpace(id) == "" {
		return &OpError{Op: "send_message", Err: fmt.Errorf("task id is required")}
	}

	return d.op(ctx, "send_message", func(a browser.Automation) error {
		if err := d.openTask(ctx, a, id); err != nil {
			return err
		}
		if err := a.Fill(ctx, selChatInput, message); err != nil {
			return err
		}
		if err := a.Press(ctx, "Enter"); err != nil {
			return err
		}
		if d.MessageDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.MessageDelay):
			}
		}
		return nil
	})
}

// ApprovePlan clicks the approval control when present. A missing control is
// a normal outcome, not a failure.
func (d *Driver) ApprovePlan(ctx context.Context, taskIDOrURL string) (*OpOutcome, error) {
	return d.clickIfVisible(ctx, "approve_plan", taskIDOrURL, selApproveButton,
		"plan approved", "nothing to approve")
}

// ResumeTask clicks the resume control when present.
func (d *Driver) ResumeTask(ctx context.Context, taskIDOrURL string) (*OpOutcome, error) {
	return d.clickIfVisible(ctx, "resume_task", taskIDOrURL, selResumeButton,
		"task resumed", "nothing to resume")
}

func (d *Driver) clickIfVisible(ctx context.Context, opName, taskIDOrURL, selector, doneNote, skipNote string) (*OpOutcome, error) {
	id := ResolveTaskID(taskIDOrURL)
	if strings.TrimSpace(id) == "" {
		return nil, &OpError{Op: opName, Err: fmt.Errorf("task id is required")}
	}

	outcome := &OpOutcome{}
	err := d.op(ctx, opName, func(a browser.Automation) error {
		if err := d.openTask(ctx, a, id); err != nil {
			return err
		}
		visible, err := a.Visible(ctx, selector)
		if err != nil {
			return err
		}
		if !visible {
			outcome.Note = skipNote
			return nil
		}
		if err := a.Click(ctx, selector); err != nil {
			return err
		}
		outcome.Done = true
		outcome.Note = doneNote
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AnalyzeCode scrapes file links and change cards into a flat summary.
// includeSourceCode is accepted for interface compatibility; it does not
// deepen the scrape.
func (d *Driver) AnalyzeCode(ctx context.Context, taskIDOrURL string, includeSourceCode bool) (*CodeAnalysis, error) {
	id := ResolveTaskID(taskIDOrURL)
	if strings.TrimSpace(id) == "" {
		return nil, &OpError{Op: "analyze_code", Err: fmt.Errorf("task id is required")}
	}

	analysis := &CodeAnalysis{TaskID: id, URL: TaskURL(d.cfg.BaseURL, id)}
	err := d.op(ctx, "analyze_code", func(a browser.Automation) error {
		if err := d.openTask(ctx, a, id); err != nil {
			return err
		}

		files, err := scrapeFiles(ctx, a)
		if err != nil {
			return err
		}
		texts, err := a.Texts(ctx, selChangeCard)
		if err != nil {
			return err
		}
		var changes []string
		for _, text := range texts {
			if text = strings.TrimSpace(text); text != "" {
				changes = append(changes, text)
			}
		}

		analysis.SourceFiles = files
		analysis.Changes = changes
		analysis.FileCount = len(files)
		analysis.ChangeCount = len(changes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// Screenshot captures the current page, optionally navigating to a task
// first. Returns the written file path.
func (d *Driver) Screenshot(ctx context.Context, taskIDOrURL, filename string) (string, error) {
	var path string
	err := d.op(ctx, "screenshot", func(a browser.Automation) error {
		var id string
		if strings.TrimSpace(taskIDOrURL) != "" {
			id = ResolveTaskID(taskIDOrURL)
			if err := d.openTask(ctx, a, id); err != nil {
				return err
			}
		}

		data, err := a.Screenshot(ctx, true)
		if err != nil {
			return err
		}

		name := filename
		if name == "" {
			ref := id
			if ref == "" {
				ref = uuid.New().String()[:8]
			}
			name = fmt.Sprintf("jules-%s-%s.png", ref, time.Now().Format("20060102-150405"))
		}
		path = name
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.cfg.ScreenshotDir, name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	})
	if err != nil {
		return "", err
	}
	logging.Infof("screenshot saved to %s", path)
	return path, nil
}

// BulkCreateTasks applies CreateTask sequentially, collecting per-entry
// outcomes. A failed entry does not stop the rest.
func (d *Driver) BulkCreateTasks(ctx context.Context, specs []TaskSpec) []BulkResult {
	results := make([]BulkResult, 0, len(specs))
	for i, spec := range specs {
		task, err := d.CreateTask(ctx, spec.Description, spec.Repository, spec.Branch)
		if err != nil {
			results = append(results, BulkResult{
				Index:   i,
				Message: err.Error(),
			})
			continue
		}
		results = append(results, BulkResult{
			Index:   i,
			TaskID:  task.ID,
			Success: true,
			Message: fmt.Sprintf("created task %s", task.ID),
		})
	}
	return results
}

// ListTasks reads from the local store only; no page interaction.
func (d *Driver) ListTasks(status string, limit int) ([]Task, error) {
	tasks, err := d.store.List(status, limit)
	if err != nil {
		return nil, &OpError{Op: "list_tasks", Err: err}
	}
	return tasks, nil
}

// DeleteTask removes a task from the local store. The dashboard itself is
// untouched.
func (d *Driver) DeleteTask(taskIDOrURL string) (bool, error) {
	id := ResolveTaskID(taskIDOrURL)
	if strings.TrimSpace(id) == "" {
		return false, &OpError{Op: "delete_task", Err: fmt.Errorf("task id is required")}
	}
	removed, err := d.store.Delete(id)
	if err != nil {
		return false, &OpError{Op: "delete_task", Err: err}
	}
	return removed, nil
}

// Cookies returns the live context's cookies serialized for reuse, plus a
// count line. The "\n" between them is a literal two-character sequence, not
// a line break.
func (d *Driver) Cookies(ctx context.Context) (string, error) {
	var out string
	err := d.op(ctx, "get_cookies", func(a browser.Automation) error {
		cs, err := a.Cookies(ctx)
		if err != nil {
			return err
		}
		out = cookies.Serialize(cs) + `\n` + fmt.Sprintf("%d cookies", len(cs))
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// SetCookies parses a raw cookie string and injects it into the live
// context. Returns the number of cookies injected.
func (d *Driver) SetCookies(ctx context.Context, cookieString string) (int, error) {
	parsed := cookies.Parse(cookieString)
	if len(parsed) == 0 {
		return 0, &OpError{Op: "set_cookies", Err: fmt.Errorf("no cookies found in input")}
	}
	err := d.op(ctx, "set_cookies", func(a browser.Automation) error {
		return a.SetCookies(ctx, parsed)
	})
	if err != nil {
		return 0, err
	}
	return len(parsed), nil
}

// SessionInfo snapshots configuration and session liveness without touching
// the page.
func (d *Driver) SessionInfo() map[string]any {
	return map[string]any{
		"mode":          string(d.cfg.Mode),
		"rawMode":       d.cfg.RawMode,
		"headless":      d.cfg.Headless,
		"baseUrl":       d.cfg.BaseURL,
		"timeoutMs":     d.cfg.TimeoutMS,
		"debug":         d.cfg.Debug,
		"profileDir":    d.cfg.ProfileDir,
		"cookieFile":    d.cfg.CookieFile,
		"storePath":     d.cfg.StorePath,
		"screenshotDir": d.cfg.ScreenshotDir,
		"browserActive": d.session.Active(),
	}
}

// titleFrom derives a task title: first line of the description, capped.
func titleFrom(description string) string {
	title := strings.TrimSpace(description)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	const max = 80
	if runes := []rune(title); len(runes) > max {
		title = string(runes[:max-3]) + "..."
	}
	return title
}

func scrapeMessages(ctx context.Context, a browser.Automation) ([]ChatMessage, error) {
	texts, err := a.Texts(ctx, selChatMessage)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	messages := make([]ChatMessage, 0, len(texts))
	for _, text := range texts {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		// Origin attribution is lost in the DOM; everything scraped is
		// tagged system with scrape-time timestamps.
		messages = append(messages, ChatMessage{
			Timestamp: now,
			Content:   text,
			Type:      MessageTypeSystem,
		})
	}
	return messages, nil
}

func scrapeFiles(ctx context.Context, a browser.Automation) ([]SourceFile, error) {
	links, err := a.Links(ctx, selSourceFileLink)
	if err != nil {
		return nil, err
	}
	files := make([]SourceFile, 0, len(links))
	for _, link := range links {
		name := strings.TrimSpace(link.Text)
		if name == "" {
			name = filepath.Base(link.Href)
		}
		files = append(files, SourceFile{
			Filename: name,
			URL:      link.Href,
			Status:   FileModified,
		})
	}
	return files, nil
}

// scrapeStatus reads the status indicator. Absent indicator means unknown;
// label text is normalized (lower case, spaces to underscores) and carried
// even when it falls outside the known constants.
func scrapeStatus(ctx context.Context, a browser.Automation) Status {
	visible, err := a.Visible(ctx, selStatusIndicator)
	if err != nil || !visible {
		return StatusUnknown
	}
	text, err := a.Text(ctx, selStatusIndicator)
	if err != nil {
		return StatusUnknown
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return StatusUnknown
	}
	return Status(strings.ReplaceAll(text, " ", "_"))
}
