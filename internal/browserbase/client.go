// Package browserbase provisions remote browser sessions through the
// Browserbase HTTP API and yields the CDP endpoint the session manager
// connects to.
package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/logging"
)

// DefaultBaseURL is the production sessions API.
const DefaultBaseURL = "https://api.browserbase.com"

const connectHost = "wss://connect.browserbase.com"

// Session is a provisioned remote browser session as returned by the API.
type Session struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ConnectURL string `json:"connectUrl"`
}

type createRequest struct {
	ProjectID string `json:"projectId"`
	KeepAlive bool   `json:"keepAlive"`
	Timeout   int    `json:"timeout"`
	ContextID string `json:"contextId,omitempty"`
}

// ProvisioningError reports a failed session-creation request. The
// drop-context fallback in CreateSession is the only automatic retry; every
// other failure carries this error unchanged.
type ProvisioningError struct {
	StatusCode int
	Body       string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("browserbase: session create failed: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Browserbase sessions API.
type Client struct {
	apiKey    string
	projectID string
	sessionID string
	contextID string
	timeout   time.Duration
	baseURL   string
	http      *http.Client
}

// New builds a client from the session configuration.
func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:    cfg.BrowserbaseAPIKey,
		projectID: cfg.BrowserbaseProjectID,
		sessionID: cfg.BrowserbaseSessionID,
		contextID: cfg.BrowserbaseContextID,
		timeout:   cfg.Timeout(),
		baseURL:   DefaultBaseURL,
		http:      &http.Client{Timeout: cfg.Timeout()},
	}
}

// CreateSession provisions a new remote session with keepAlive set. When a
// context id is configured and the API rejects the request with a client
// error, the request is retried exactly once without the context id; the
// retry's outcome, success or failure, is final.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	if c.apiKey == "" {
		return nil, &config.Error{Mode: config.ModeBrowserbase, Setting: "BROWSERBASE_API_KEY"}
	}
	if c.projectID == "" {
		return nil, &config.Error{Mode: config.ModeBrowserbase, Setting: "BROWSERBASE_PROJECT_ID"}
	}

	req := createRequest{
		ProjectID: c.projectID,
		KeepAlive: true,
		Timeout:   int(c.timeout.Seconds()),
		ContextID: c.contextID,
	}

	sess, err := c.create(ctx, req)
	if err != nil && req.ContextID != "" {
		var perr *ProvisioningError
		if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 {
			logging.Warnf("browserbase: context %s rejected (status %d), retrying without it", req.ContextID, perr.StatusCode)
			req.ContextID = ""
			return c.create(ctx, req)
		}
	}
	return sess, err
}

func (c *Client) create(ctx context.Context, body createRequest) (*Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("browserbase: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("browserbase: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BB-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browserbase: sessions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProvisioningError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("browserbase: decode session: %w", err)
	}
	logging.Infof("browserbase: session %s created (status %s)", sess.ID, sess.Status)
	return &sess, nil
}

// ConnectURL yields the CDP endpoint to connect to. With a configured
// existing session id the URL is computed locally with no network call;
// otherwise a session is created. The result is not cached: calling twice
// without an existing id provisions two sessions.
func (c *Client) ConnectURL(ctx context.Context) (string, error) {
	if c.sessionID != "" {
		return fmt.Sprintf("%s?apiKey=%s&sessionId=%s", connectHost, c.apiKey, c.sessionID), nil
	}
	sess, err := c.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	return sess.ConnectURL, nil
}

// Probe dials the websocket endpoint and closes it immediately. Used by the
// check command to verify credentials and reachability; never on the
// operation path.
func (c *Client) Probe(ctx context.Context, connectURL string) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, connectURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("browserbase: endpoint dial (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("browserbase: endpoint dial: %w", err)
	}
	return conn.Close()
}
