// Package backend calls the settlement backend's long-running task endpoints
// on behalf of the current session.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/pscheid92/faredesk/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 4 << 20

// CancelledCode is the structured error code for an operator-cancelled task.
const CancelledCode = "CANCELLED"

// Older backends only signal cancellation in the message text.
var cancelledSignatures = []string{
	"cancelled by administrator",
	"canceled by administrator",
	"operation was force-stopped",
}

// StatusError is a non-2xx answer from the status endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("task status: status %d: %s", e.Code, e.Body)
}

type Config struct {
	BaseURL    string
	CookieName string
}

// Client implements domain.TaskBackend.
type Client struct {
	base       *url.URL
	cookieName string
	session    domain.SessionSource
	http       *http.Client
	statuses   singleflight.Group
}

// NewClient builds a backend client that attaches session's current handle
// to every call. Deadlines come from the caller's context.
func NewClient(cfg Config, session domain.SessionSource) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	return &Client{
		base:       base,
		cookieName: cfg.CookieName,
		session:    session,
		http:       &http.Client{},
	}, nil
}

type executeRequest struct {
	Type    domain.TaskType `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Execute runs a task and classifies the answer. Any way the call can end
// without a definitive answer from the server, including the caller's own
// deadline, is reported as ExecuteContextDestroyed.
func (c *Client) Execute(ctx context.Context, taskType domain.TaskType, payload json.RawMessage) domain.ExecuteResult {
	resp, body, err := c.post(ctx, "/tasks/execute", executeRequest{Type: taskType, Payload: payload})
	if err != nil {
		slog.DebugContext(ctx, "Execute call ended without an answer", "task_type", taskType, "error", err)
		return domain.ExecuteResult{Kind: domain.ExecuteContextDestroyed, Message: err.Error()}
	}

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.ExecuteResult{
			Kind:    domain.ExecuteContextDestroyed,
			Message: fmt.Sprintf("gateway answered %d", resp.StatusCode),
		}
	}

	return classifyExecute(resp.StatusCode, body)
}

// Status reports the backend's active operations of taskType. Identical
// concurrent lookups share one request.
func (c *Client) Status(ctx context.Context, taskType domain.TaskType) ([]domain.ActiveOperation, error) {
	sessionID := c.sessionID()
	key := string(taskType) + "|" + sessionID

	v, err, shared := c.statuses.Do(key, func() (any, error) {
		resp, body, err := c.post(ctx, "/tasks/status", map[string]domain.TaskType{"type": taskType})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return parseOperations(body)
	})
	if shared {
		metrics.BackendStatusShared.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]domain.ActiveOperation), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), bytes.NewReader(buf))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := c.sessionID(); id != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: id})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

func (c *Client) sessionID() string {
	if c.session == nil {
		return ""
	}
	return c.session.SessionID()
}

type executeBody struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
}

func classifyExecute(statusCode int, body []byte) domain.ExecuteResult {
	ok := statusCode >= 200 && statusCode <= 299

	var parsed executeBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			if ok {
				return domain.ExecuteResult{Kind: domain.ExecuteSucceeded}
			}
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = http.StatusText(statusCode)
			}
			return failed(msg, "")
		}
	}

	errMsg, errCode := parseErrorField(parsed.Error)
	code := parsed.Code
	if code == "" {
		code = errCode
	}

	failedShape := errMsg != "" ||
		(parsed.Success != nil && !*parsed.Success) ||
		parsed.Status == "error" || parsed.Status == "failed"

	if ok && !failedShape {
		return domain.ExecuteResult{Kind: domain.ExecuteSucceeded, Message: parsed.Message}
	}

	msg := errMsg
	if msg == "" {
		msg = parsed.Message
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return failed(msg, code)
}

func failed(message, code string) domain.ExecuteResult {
	return domain.ExecuteResult{
		Kind:      domain.ExecuteFailed,
		Message:   message,
		Code:      code,
		Cancelled: isCancellation(code, message),
	}
}

// parseErrorField accepts either "error": "text" or "error": {"message", "code"}.
func parseErrorField(raw json.RawMessage) (message, code string) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ""
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message == "" && obj.Code != "" {
			obj.Message = obj.Code
		}
		return obj.Message, obj.Code
	}
	return string(raw), ""
}

func isCancellation(code, message string) bool {
	if strings.EqualFold(code, CancelledCode) {
		return true
	}
	lower := strings.ToLower(message)
	for _, sig := range cancelledSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func parseOperations(body []byte) ([]domain.ActiveOperation, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []domain.ActiveOperation{}, nil
	}

	var ops []domain.ActiveOperation
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return nil, fmt.Errorf("decode task status: %w", err)
		}
		return ops, nil
	}

	var wrapped struct {
		Tasks []domain.ActiveOperation `json:"tasks"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	if wrapped.Tasks == nil {
		return []domain.ActiveOperation{}, nil
	}
	return wrapped.Tasks, nil
}
