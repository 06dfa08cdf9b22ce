// Package ws implements ports.Transport over a websocket link for immediate
// delivery, with an HTTP relay mailbox as the store-and-forward tier.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/terminalpulse/pulsesync/internal/domain"
	"github.com/terminalpulse/pulsesync/internal/ports"
)

// TransportConfig configures the dual-tier transport.
type TransportConfig struct {
	// LinkURL is the websocket endpoint for the immediate channel
	// (ws:// or wss://).
	LinkURL string

	// RelayURL is the HTTP endpoint of the store-and-forward mailbox.
	// Empty disables the tier; SendStoreAndForward then always fails.
	RelayURL string

	// AuthToken is sent as a bearer token on relay requests and the
	// websocket handshake.
	AuthToken string

	// DrainInterval is how often the relay mailbox is polled for queued
	// payloads. Zero disables draining (sender side).
	DrainInterval time.Duration

	// PingInterval keeps the websocket alive and detects a dead peer.
	PingInterval time.Duration

	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration

	// ReconnectMin and ReconnectMax bound the redial backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// DefaultTransportConfig returns the transport defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		PingInterval: 20 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// Transport implements ports.Transport. Reachability mirrors the websocket
// connection state and flips are pushed to the handler as events. Malformed
// inbound payloads are dropped, never surfaced: a bad payload must not take
// down the replication loop.
type Transport struct {
	cfg    TransportConfig
	logger ports.Logger
	relay  *retryablehttp.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	reachable bool
	handler   ports.EventHandler
}

// NewTransport creates a transport. Call Run to establish the link.
func NewTransport(cfg TransportConfig, logger ports.Logger) *Transport {
	relay := retryablehttp.NewClient()
	relay.RetryMax = 2
	relay.RetryWaitMin = time.Second
	relay.RetryWaitMax = 5 * time.Second
	relay.Logger = nil

	return &Transport{cfg: cfg, logger: logger, relay: relay}
}

// SetHandler registers the single event handler.
func (t *Transport) SetHandler(h ports.EventHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Reachable reports whether the websocket link is currently up.
func (t *Transport) Reachable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reachable
}

// SendImmediate writes the envelope over the live websocket.
func (t *Transport) SendImmediate(ctx context.Context, env domain.Envelope) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: link down", domain.ErrUnreachable)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// gorilla websocket permits one concurrent writer; serialize here.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != conn {
		return fmt.Errorf("%w: link down", domain.ErrUnreachable)
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	return nil
}

// relayResponse is the mailbox's answer to a queued payload.
type relayResponse struct {
	// Delivered reports that the peer has already picked the payload up
	// (e.g. it was drained while the request was in flight).
	Delivered bool `json:"delivered"`
}

// SendStoreAndForward queues the envelope on the relay mailbox. Fire and
// forget with a small bounded retry budget; rate limiting is the caller's
// concern.
func (t *Transport) SendStoreAndForward(ctx context.Context, env domain.Envelope) error {
	if t.cfg.RelayURL == "" {
		return fmt.Errorf("store-and-forward disabled: no relay url")
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.cfg.RelayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.relay.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case resp.StatusCode/100 != 2:
		return &domain.ServerError{Code: resp.StatusCode, Detail: "relay rejected payload"}
	}

	var rr relayResponse
	if json.NewDecoder(resp.Body).Decode(&rr) == nil && rr.Delivered {
		t.dispatch(ports.Event{Kind: ports.StoreAndForwardDelivered})
	}
	return nil
}

// Run maintains the websocket link (dial, read, redial with backoff) and, if
// configured, drains the relay mailbox. Blocks until the context is canceled.
func (t *Transport) Run(ctx context.Context) error {
	if t.cfg.DrainInterval > 0 {
		go t.drainLoop(ctx)
	}

	backoff := t.cfg.ReconnectMin
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.Debug("link dial failed", ports.Err(err))
			// Jittered exponential redial, same shape as the poll backoff.
			j := 0.8 + 0.4*rand.Float64()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(float64(backoff) * j)):
			}
			backoff *= 2
			if backoff > t.cfg.ReconnectMax {
				backoff = t.cfg.ReconnectMax
			}
			continue
		}
		backoff = t.cfg.ReconnectMin

		t.setConn(conn, true)
		t.readLoop(ctx, conn)
		t.setConn(nil, false)
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.LinkURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop pumps inbound messages until the connection dies. The ping ticker
// doubles as the liveness probe; a missed pong times the read out.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	readWait := t.cfg.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(t.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				t.mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				t.mu.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Debug("link read failed", ports.Err(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env domain.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// Malformed payloads are swallowed, not fatal.
			t.logger.Debug("dropping malformed payload", ports.Err(err))
			continue
		}
		t.dispatch(ports.Event{Kind: ports.ImmediateDelivered, Envelope: &env})
	}
}

// drainLoop polls the relay mailbox for payloads queued while the link was
// down, dispatching each as a store-and-forward delivery.
func (t *Transport) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.drainOnce(ctx)
		}
	}
}

func (t *Transport) drainOnce(ctx context.Context) {
	if t.cfg.RelayURL == "" {
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, t.cfg.RelayURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)

	resp, err := t.relay.Do(req)
	if err != nil {
		t.logger.Debug("relay drain failed", ports.Err(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return
	}

	var queued []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return
	}
	for _, raw := range queued {
		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.logger.Debug("dropping malformed queued payload", ports.Err(err))
			continue
		}
		t.dispatch(ports.Event{Kind: ports.StoreAndForwardDelivered, Envelope: &env})
	}
}

func (t *Transport) setConn(conn *websocket.Conn, reachable bool) {
	t.mu.Lock()
	t.conn = conn
	changed := t.reachable != reachable
	t.reachable = reachable
	t.mu.Unlock()

	if changed {
		t.dispatch(ports.Event{Kind: ports.ReachabilityChanged, Reachable: reachable})
	}
}

func (t *Transport) dispatch(ev ports.Event) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h.HandleTransportEvent(ev)
	}
}
