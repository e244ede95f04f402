// Package authority talks to the external session authority. Each call is a
// single round trip; the response is classified into a domain.Outcome and
// never retried here.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pscheid92/faredesk/internal/domain"
	"golang.org/x/net/publicsuffix"
)

const maxBodyBytes = 1 << 20

// StatusError is a non-2xx answer from the authority.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Body)
}

// Rejected reports whether the authority refused the handle outright.
func (e *StatusError) Rejected() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusBadRequest
}

type Config struct {
	BaseURL    string
	CookieName string
	Timeout    time.Duration
}

type Client struct {
	base       *url.URL
	cookieName string
	http       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse authority url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:       base,
		cookieName: cfg.CookieName,
		http:       &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

type sessionBody struct {
	SessionID  string `json:"sessionId"`
	AgencyCode string `json:"agencyCode"`
}

func (c *Client) Create(ctx context.Context) domain.Outcome[domain.CreateResult] {
	resp, body, err := c.do(ctx, http.MethodPost, "/session/create", "")
	if err != nil {
		return failure[domain.CreateResult]("create", err)
	}

	var parsed sessionBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return domain.TransientFailure[domain.CreateResult](fmt.Sprintf("create: malformed response: %v", err))
		}
	}
	if parsed.SessionID == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == c.cookieName && ck.Value != "" {
				parsed.SessionID = ck.Value
			}
		}
	}
	if parsed.SessionID == "" {
		return domain.TransientFailure[domain.CreateResult]("create: response carried no session handle")
	}

	return domain.Ok(domain.CreateResult{SessionID: parsed.SessionID, AgencyCode: parsed.AgencyCode})
}

func (c *Client) Fetch(ctx context.Context, sessionID string) domain.Outcome[domain.FetchResult] {
	_, body, err := c.do(ctx, http.MethodGet, "/session", sessionID)
	if err != nil {
		return failure[domain.FetchResult]("fetch", err)
	}

	var parsed sessionBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return domain.TransientFailure[domain.FetchResult](fmt.Sprintf("fetch: malformed response: %v", err))
		}
	}
	return domain.Ok(domain.FetchResult{AgencyCode: parsed.AgencyCode})
}

func (c *Client) Clear(ctx context.Context, sessionID string) domain.Outcome[struct{}] {
	_, _, err := c.do(ctx, http.MethodPost, "/session/clear", sessionID)
	c.forget()
	if err != nil {
		return failure[struct{}]("clear", err)
	}
	return domain.Ok(struct{}{})
}

// do issues one request with sessionID installed as the session cookie and
// returns the response with its body fully read.
func (c *Client) do(ctx context.Context, method, path, sessionID string) (*http.Response, []byte, error) {
	u := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if sessionID != "" {
		c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: c.cookieName, Value: sessionID, Path: "/"}})
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

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{Op: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, body, nil
}

func (c *Client) forget() {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: c.cookieName, Value: "", Path: "/", MaxAge: -1}})
}

func failure[T any](op string, err error) domain.Outcome[T] {
	var se *StatusError
	if errors.As(err, &se) && se.Rejected() {
		slog.Debug("Authority rejected session", "operation", op, "status", se.Code)
		return domain.AuthFailure[T](se.Error())
	}
	return domain.TransientFailure[T](fmt.Sprintf("%s: %v", op, err))
}
