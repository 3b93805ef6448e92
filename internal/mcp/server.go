// Package mcp exposes the task operations as Model Context Protocol tools,
// served over stdio or streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/julestools/julesmcp/internal/jules"
	"github.com/julestools/julesmcp/internal/logging"
)

// Server wraps the task driver and exposes one MCP tool per operation.
type Server struct {
	driver *jules.Driver
	server *mcp.Server
}

// NewServer builds the MCP server and registers every tool.
func NewServer(driver *jules.Driver, version string) *Server {
	s := &Server{driver: driver}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "jules-mcp",
		Version: version,
	}, nil)

	s.registerTools()
	return s
}

// toolDef pairs a tool's wire definition with the method that runs it.
type toolDef struct {
	name        string
	description string
	schema      map[string]any
	run         func(ctx context.Context, args json.RawMessage) (string, error)
}

func (s *Server) registerTools() {
	for _, def := range s.tools() {
		tool := def
		s.server.AddTool(&mcp.Tool{
			Name:        tool.name,
			Description: tool.description,
			InputSchema: tool.schema,
		}, s.handle(tool.name, tool.run))
	}
}

// handle wraps a tool method with argument decoding, panic recovery, and
// the uniform error shape: every failure text carries the tool name and the
// underlying cause.
func (s *Server) handle(name string, run func(context.Context, json.RawMessage) (string, error)) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (retResult *mcp.CallToolResult, retErr error) {
		// A panic must not kill the stdio stream.
		defer func() {
			if r := recover(); r != nil {
				logging.Errorf("panic in tool %s: %v", name, r)
				retResult = errorResult(fmt.Sprintf("%s failed: panic: %v", name, r))
				retErr = nil
			}
		}()

		args := json.RawMessage(req.Params.Arguments)
		logging.Debugf("tool call: %s args=%s", name, truncate(string(args), 200))

		text, err := run(ctx, args)
		if err != nil {
			return errorResult(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return textResult(text), nil
	}
}

func (s *Server) tools() []toolDef {
	taskRef := map[string]any{
		"type":        "string",
		"description": "Task ID or full task URL",
	}

	return []toolDef{
		{
			name:        "jules_create_task",
			description: "Create a new Jules task: select the repository and branch, submit the description, and record the task locally. Returns the created task as JSON.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{
						"type":        "string",
						"description": "What the task should do. The first line becomes the stored title.",
					},
					"repository": map[string]any{
						"type":        "string",
						"description": "Repository to run the task against, e.g. owner/repo",
					},
					"branch": map[string]any{
						"type":        "string",
						"description": "Branch to target (default: main)",
					},
				},
				"required": []string{"description", "repository"},
			},
			run: s.createTask,
		},
		{
			name:        "jules_get_task",
			description: "Fetch the live state of a task from its page: status, chat history, and changed files. Refreshes the local store.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
				},
				"required": []string{"taskId"},
			},
			run: s.getTask,
		},
		{
			name:        "jules_send_message",
			description: "Send a chat message to a task.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
					"message": map[string]any{
						"type":        "string",
						"description": "Message text to post into the task chat",
					},
				},
				"required": []string{"taskId", "message"},
			},
			run: s.sendMessage,
		},
		{
			name:        "jules_approve_plan",
			description: "Approve the proposed plan on a task. Reports 'nothing to approve' when no approval control is shown.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
				},
				"required": []string{"taskId"},
			},
			run: s.approvePlan,
		},
		{
			name:        "jules_resume_task",
			description: "Resume a paused task. Reports 'nothing to resume' when no resume control is shown.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
				},
				"required": []string{"taskId"},
			},
			run: s.resumeTask,
		},
		{
			name:        "jules_analyze_code",
			description: "Summarize the code changes on a task: changed files, change descriptions, and counts. Returns JSON.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
					"includeSourceCode": map[string]any{
						"type":        "boolean",
						"description": "Accepted for compatibility; does not deepen the scrape",
					},
				},
				"required": []string{"taskId"},
			},
			run: s.analyzeCode,
		},
		{
			name:        "jules_bulk_create_tasks",
			description: "Create several tasks in sequence and collect each one's success or failure. Returns per-task results as JSON.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tasks": map[string]any{
						"type":        "array",
						"description": "Tasks to create, in order",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"description": map[string]any{"type": "string"},
								"repository":  map[string]any{"type": "string"},
								"branch":      map[string]any{"type": "string"},
							},
							"required": []string{"description", "repository"},
						},
					},
				},
				"required": []string{"tasks"},
			},
			run: s.bulkCreateTasks,
		},
		{
			name:        "jules_screenshot",
			description: "Capture a full-page screenshot, optionally navigating to a task first. Returns the saved file path.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
					"filename": map[string]any{
						"type":        "string",
						"description": "Target file name or path; generated when omitted",
					},
				},
			},
			run: s.screenshot,
		},
		{
			name:        "jules_list_tasks",
			description: "List locally stored tasks, most recently updated first. Returns JSON.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type":        "string",
						"description": "Only tasks with this status (pending, in_progress, completed, paused, waiting_approval)",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "At most this many tasks",
					},
				},
			},
			run: s.listTasks,
		},
		{
			name:        "jules_delete_task",
			description: "Remove a task from the local store. The dashboard itself is not touched.",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": taskRef,
				},
				"required": []string{"taskId"},
			},
			run: s.deleteTask,
		},
		{
			name:        "jules_get_cookies",
			description: "Export the browser session's cookies as a cookie string for reuse.",
			schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			run: s.getCookies,
		},
		{
			name:        "jules_set_cookies",
			description: "Inject cookies into the browser session from a cookie string (name=value pairs separated by semicolons).",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cookies": map[string]any{
						"type":        "string",
						"description": "Cookie string, e.g. \"SID=abc; HSID=def\"",
					},
				},
				"required": []string{"cookies"},
			},
			run: s.setCookies,
		},
		{
			name:        "jules_session_info",
			description: "Report the session configuration and whether a browser is currently active. Returns JSON.",
			schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			run: s.sessionInfo,
		},
	}
}

func (s *Server) createTask(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		Description string `json:"description"`
		Repository  string `json:"repository"`
		Branch      string `json:"branch"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	task, err := s.driver.CreateTask(ctx, in.Description, in.Repository, in.Branch)
	if err != nil {
		return "", err
	}
	return asJSON(task)
}

func (s *Server) getTask(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	task, err := s.driver.GetTask(ctx, in.TaskID)
	if err != nil {
		return "", err
	}
	return asJSON(task)
}

func (s *Server) sendMessage(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID  string `json:"taskId"`
		Message string `json:"message"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	if err := s.driver.SendMessage(ctx, in.TaskID, in.Message); err != nil {
		return "", err
	}
	return fmt.Sprintf("message sent to task %s", jules.ResolveTaskID(in.TaskID)), nil
}

func (s *Server) approvePlan(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	outcome, err := s.driver.ApprovePlan(ctx, in.TaskID)
	if err != nil {
		return "", err
	}
	return outcome.Note, nil
}

func (s *Server) resumeTask(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	outcome, err := s.driver.ResumeTask(ctx, in.TaskID)
	if err != nil {
		return "", err
	}
	return outcome.Note, nil
}

func (s *Server) analyzeCode(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID            string `json:"taskId"`
		IncludeSourceCode bool   `json:"includeSourceCode"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	analysis, err := s.driver.AnalyzeCode(ctx, in.TaskID, in.IncludeSourceCode)
	if err != nil {
		return "", err
	}
	return asJSON(analysis)
}

func (s *Server) bulkCreateTasks(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		Tasks []jules.TaskSpec `json:"tasks"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	if len(in.Tasks) == 0 {
		return "", fmt.Errorf("tasks is required")
	}
	results := s.driver.BulkCreateTasks(ctx, in.Tasks)
	return asJSON(results)
}

func (s *Server) screenshot(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID   string `json:"taskId"`
		Filename string `json:"filename"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	path, err := s.driver.Screenshot(ctx, in.TaskID, in.Filename)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("screenshot saved: %s", path), nil
}

func (s *Server) listTasks(_ context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		Status string `json:"status"`
		Limit  int    `json:"limit"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	tasks, err := s.driver.ListTasks(in.Status, in.Limit)
	if err != nil {
		return "", err
	}
	return asJSON(tasks)
}

func (s *Server) deleteTask(_ context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	deleted, err := s.driver.DeleteTask(in.TaskID)
	if err != nil {
		return "", err
	}
	id := jules.ResolveTaskID(in.TaskID)
	if !deleted {
		return fmt.Sprintf("task %s not found in local store", id), nil
	}
	return fmt.Sprintf("task %s deleted from local store", id), nil
}

func (s *Server) getCookies(ctx context.Context, _ json.RawMessage) (string, error) {
	return s.driver.Cookies(ctx)
}

func (s *Server) setCookies(ctx context.Context, raw json.RawMessage) (string, error) {
	var in struct {
		Cookies string `json:"cookies"`
	}
	if err := unmarshalArgs(raw, &in); err != nil {
		return "", err
	}
	n, err := s.driver.SetCookies(ctx, in.Cookies)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("injected %d cookies into the browser session", n), nil
}

func (s *Server) sessionInfo(_ context.Context, _ json.RawMessage) (string, error) {
	return asJSON(s.driver.SessionInfo())
}

// Run serves the MCP protocol on stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns an HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return s.server
		},
		nil,
	)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func asJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
