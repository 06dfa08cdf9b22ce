// Package http provides the capture-server adapter: CaptureSource and
// NavigationSource over the TerminalPulse HTTP API.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

const (
	captureEndpoint  = "/capture"
	sessionsEndpoint = "/sessions"
	switchEndpoint   = "/switch"
	healthEndpoint   = "/health"
)

// ClientConfig configures the capture client.
type ClientConfig struct {
	// BaseURL is the capture server root, no trailing slash.
	BaseURL string

	// AuthToken is sent as a bearer token on every request.
	AuthToken string

	// Lines is the number of pane lines to capture per fetch.
	Lines int

	// Timeout bounds each request when no deadline is on the context.
	Timeout time.Duration
}

// Client talks to the tmux capture server. It implements ports.CaptureSource
// and ports.NavigationSource; reads are idempotent and side-effect-free.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     ports.Logger

	mu   sync.Mutex
	host string
}

// NewClient creates a capture client.
func NewClient(cfg ClientConfig, logger ports.Logger) *Client {
	if cfg.Lines <= 0 {
		cfg.Lines = 80
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// captureResponse mirrors the server's /capture payload.
type captureResponse struct {
	Raw  string `json:"raw"`
	Hash string `json:"hash"`
	Pane *struct {
		Session  string `json:"session"`
		WinIndex int    `json:"winIndex"`
		WinName  string `json:"winName"`
		PaneID   string `json:"paneId"`
	} `json:"pane"`
	ParsedLines []domain.Line `json:"parsed_lines"`
	TS          time.Time     `json:"ts"`
}

// Fetch captures the pane selected by target; empty target means the
// server's current default pane.
func (c *Client) Fetch(ctx context.Context, target string) (domain.Frame, error) {
	q := url.Values{}
	q.Set("lines", strconv.Itoa(c.cfg.Lines))
	if target != "" {
		q.Set("target", target)
	}

	var resp captureResponse
	if err := c.get(ctx, captureEndpoint+"?"+q.Encode(), &resp); err != nil {
		return domain.Frame{}, err
	}

	frame := domain.Frame{
		Host:        c.hostname(ctx),
		Timestamp:   resp.TS,
		ContentHash: resp.Hash,
		Content:     resp.ParsedLines,
	}
	if resp.Pane != nil {
		frame.SessionID = resp.Pane.Session
		frame.WindowIndex = resp.Pane.WinIndex
		frame.WindowName = resp.Pane.WinName
		frame.PaneID = resp.Pane.PaneID
	}
	return frame, nil
}

// Sessions lists the server's tmux sessions.
func (c *Client) Sessions(ctx context.Context) ([]domain.Session, error) {
	var resp struct {
		Sessions []domain.Session `json:"sessions"`
	}
	if err := c.get(ctx, sessionsEndpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// SwitchActive issues the authoritative switch request. Servers without the
// endpoint answer 404, mapped to domain.ErrNotFound, which tells the
// navigation controller to fall back to probing.
func (c *Client) SwitchActive(ctx context.Context, direction int, scope string) (domain.Pane, error) {
	body, err := json.Marshal(map[string]any{
		"direction": direction,
		"scope":     scope,
	})
	if err != nil {
		return domain.Pane{}, err
	}

	var pane domain.Pane
	if err := c.post(ctx, switchEndpoint, body, &pane); err != nil {
		return domain.Pane{}, err
	}
	return pane, nil
}

// Health probes the server once, returning hostname and tmux availability.
func (c *Client) Health(ctx context.Context) (hostname string, tmux bool, err error) {
	var resp struct {
		Status   string `json:"status"`
		Hostname string `json:"hostname"`
		Tmux     bool   `json:"tmux"`
	}
	if err := c.get(ctx, healthEndpoint, &resp); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.host = resp.Hostname
	c.mu.Unlock()
	return resp.Hostname, resp.Tmux, nil
}

// hostname returns the cached server hostname, probing health on first use.
func (c *Client) hostname(ctx context.Context) string {
	c.mu.Lock()
	host := c.host
	c.mu.Unlock()
	if host != "" {
		return host
	}
	host, _, err := c.Health(ctx)
	if err != nil {
		return ""
	}
	return host
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, refused connections and DNS failures are all
		// connectivity-class; the poll cycle retries them.
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the domain error taxonomy.
// A 400 means a rejected direction only on the switch endpoint; anywhere
// else it is just a server error.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest && isSwitchRequest(resp):
		return domain.ErrInvalidDirection
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.ServerError{Code: resp.StatusCode, Detail: string(detail)}
	}
}

func isSwitchRequest(resp *http.Response) bool {
	return resp.Request != nil && strings.HasSuffix(resp.Request.URL.Path, switchEndpoint)
}
