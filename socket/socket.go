// Package socket maintains the long-lived realtime subscription to timeline
// events: it reconnects with capped backoff, keeps the server's channel set
// in sync with local listeners, and feeds received resources back into the
// cache.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/concrnt/concrnt-go/auth"
	"github.com/concrnt/concrnt-go/core"
)

// Cache is the narrow slice of the client the socket needs: fresh message
// resources go in, superseded ones go out. The indirection breaks the
// dependency cycle between the socket and the request engine.
type Cache interface {
	UpsertMessage(ctx context.Context, resource json.RawMessage)
	InvalidateMessage(ctx context.Context, id string)
}

// ListenerFunc receives every event for a timeline it is registered on, in
// arrival order.
type ListenerFunc func(core.TimelineEvent)

// Listener is the registration handle for one callback; Unlisten removes by
// handle identity.
type Listener struct {
	fn ListenerFunc
}

// frame is a client→server control message.
type frame struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

const (
	frameListen    = "listen"
	frameUnlisten  = "unlisten"
	frameHeartbeat = "h"
	framePing      = "ping"
)

const (
	reconnectBaseDelay  = 500 * time.Millisecond
	reconnectFactor     = 1.5
	reconnectExpCap     = 15
	supervisorInterval  = 1 * time.Second
	heartbeatInterval   = 30 * time.Second
	wsHandshakeTimeout  = 10 * time.Second
	wsWriteTimeout      = 10 * time.Second
	waitOpenInterval    = 200 * time.Millisecond
	waitOpenMaxAttempts = 10
)

// Config carries the socket's collaborators.
type Config struct {
	// Host overrides the connection target; defaults to the provider home.
	Host string
	// Scheme overrides the URL scheme (default wss; tests use ws).
	Scheme string
	// Provider supplies the bearer token presented on dial. Guest providers
	// connect unauthenticated.
	Provider auth.Provider
	// Cache receives message upserts and invalidations.
	Cache Cache
	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Socket is a reconnecting subscription connection. Create one with New and
// release it with Close.
type Socket struct {
	url      string
	provider auth.Provider
	cache    Cache
	dialer   *websocket.Dialer
	log      *slog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	connID        string
	subscriptions map[string]map[*Listener]struct{}
	failcount     int
	reconnecting  bool
	disposed      bool

	done chan struct{}
}

// New creates the socket and starts its supervisors. The first connection
// attempt is scheduled immediately and runs after the base reconnect delay.
func New(cfg Config) *Socket {
	host := cfg.Host
	if host == "" && cfg.Provider != nil {
		host = cfg.Provider.Host()
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "wss"
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Socket{
		url:           fmt.Sprintf("%s://%s/api/v1/timelines/realtime", scheme, host),
		provider:      cfg.Provider,
		cache:         cfg.Cache,
		dialer:        dialer,
		log:           log,
		subscriptions: make(map[string]map[*Listener]struct{}),
		done:          make(chan struct{}),
	}
	go s.supervise()
	s.maybeReconnect()
	return s
}

// Close tears the socket down and stops its supervisors.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	close(s.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// supervise reconnects a non-open socket every second and heartbeats an
// open one every thirty.
func (s *Socket) supervise() {
	reconnectTicker := time.NewTicker(supervisorInterval)
	defer reconnectTicker.Stop()
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-reconnectTicker.C:
			s.maybeReconnect()
		case <-heartbeatTicker.C:
			if err := s.writeFrame(frame{Type: frameHeartbeat}); err != nil && !errors.Is(err, errNotConnected) {
				s.log.Debug("heartbeat failed", "err", err)
			}
		}
	}
}

func (s *Socket) maybeReconnect() {
	s.mu.Lock()
	if s.disposed || s.reconnecting || s.conn != nil {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	delay := reconnectDelay(s.failcount)
	s.mu.Unlock()

	go func() {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}
		s.connect()
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()
}

// reconnectDelay mirrors the host liveness backoff: 500ms × 1.5^min(k, 15).
func reconnectDelay(failcount int) time.Duration {
	exp := min(failcount, reconnectExpCap)
	return time.Duration(float64(reconnectBaseDelay) * math.Pow(reconnectFactor, float64(exp)))
}

// connect dials, announces the current channel set, and starts the read
// pump. Dial failures only bump the failcount; the supervisor retries.
func (s *Socket) connect() {
	header := http.Header{}
	if s.provider != nil {
		if token, err := s.provider.AuthToken(s.provider.Host()); err == nil {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := s.dialer.Dial(s.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.mu.Lock()
		s.failcount++
		failcount := s.failcount
		s.mu.Unlock()
		s.log.Warn("realtime dial failed", "url", s.url, "failcount", failcount, "retry_in", reconnectDelay(failcount).String(), "err", err)
		return
	}

	connID := ulid.Make().String()
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.connID = connID
	s.failcount = 0
	channels := s.channelsLocked()
	s.mu.Unlock()

	s.log.Info("realtime connected", "conn_id", connID, "channels", len(channels))

	// Announce the full subscription set: the server treats listen as an
	// idempotent set-reset, so one frame restores state after a reconnect.
	if err := s.writeFrame(frame{Type: frameListen, Channels: channels}); err != nil {
		s.log.Warn("resubscribe failed", "conn_id", connID, "err", err)
		s.dropConn(conn)
		return
	}

	go s.readPump(conn, connID)
}

// readPump decodes server frames until the connection dies.
func (s *Socket) readPump(conn *websocket.Conn, connID string) {
	defer s.dropConn(conn)
	for {
		var event core.TimelineEvent
		if err := conn.ReadJSON(&event); err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("realtime read failed", "conn_id", connID, "err", err)
			}
			return
		}
		s.handleEvent(event)
	}
}

// dropConn clears the active connection if it is still the given one.
func (s *Socket) dropConn(conn *websocket.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// handleEvent maintains the message cache and dispatches to listeners in
// arrival order.
func (s *Socket) handleEvent(event core.TimelineEvent) {
	ctx := context.Background()
	doc, err := event.ParsedDocument()
	if err != nil {
		s.log.Debug("undecodable event document", "timeline", event.Timeline, "err", err)
	} else if s.cache != nil {
		switch doc.Type {
		case core.DocTypeMessage:
			if event.Resource != nil {
				s.cache.UpsertMessage(ctx, event.Resource)
			}
		case core.DocTypeAssociation:
			if target := associationTarget(event.Document, event.Resource); target != "" {
				s.cache.InvalidateMessage(ctx, target)
			}
		case core.DocTypeDelete:
			var del struct {
				Target string `json:"target"`
			}
			_ = json.Unmarshal([]byte(event.Document), &del)
			switch {
			case del.Target == "":
			case del.Target[0] == 'm':
				s.cache.InvalidateMessage(ctx, del.Target)
			case del.Target[0] == 'a':
				if target := associationTarget("", event.Resource); target != "" {
					s.cache.InvalidateMessage(ctx, target)
				}
			}
		}
	}

	s.mu.Lock()
	listeners := make([]*Listener, 0, len(s.subscriptions[event.Timeline]))
	for l := range s.subscriptions[event.Timeline] {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l.fn(event)
	}
}

// associationTarget digs the association's target message id out of the
// document text or, failing that, the attached resource record.
func associationTarget(document string, resource json.RawMessage) string {
	var probe struct {
		Target string `json:"target"`
	}
	if document != "" && json.Unmarshal([]byte(document), &probe) == nil && probe.Target != "" {
		return probe.Target
	}
	if resource != nil && json.Unmarshal(resource, &probe) == nil {
		return probe.Target
	}
	return ""
}

var errNotConnected = errors.New("socket not connected")

// writeFrame serializes one frame under the write mutex with a deadline.
func (s *Socket) writeFrame(f frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		s.dropConn(conn)
		return err
	}
	if err := conn.WriteJSON(f); err != nil {
		s.dropConn(conn)
		return err
	}
	return nil
}

func (s *Socket) channelsLocked() []string {
	channels := make([]string, 0, len(s.subscriptions))
	for id := range s.subscriptions {
		channels = append(channels, id)
	}
	return channels
}

// Listen registers fn on each timeline and returns its removal handle. If
// any timeline is new, the refreshed channel set is announced to the server.
func (s *Socket) Listen(timelines []string, fn ListenerFunc) *Listener {
	l := &Listener{fn: fn}
	s.mu.Lock()
	added := false
	for _, id := range timelines {
		set, ok := s.subscriptions[id]
		if !ok {
			set = make(map[*Listener]struct{})
			s.subscriptions[id] = set
			added = true
		}
		set[l] = struct{}{}
	}
	channels := s.channelsLocked()
	s.mu.Unlock()

	if added {
		if err := s.writeFrame(frame{Type: frameListen, Channels: channels}); err != nil && !errors.Is(err, errNotConnected) {
			s.log.Warn("listen frame failed", "err", err)
		}
	}
	return l
}

// Unlisten removes the handle from each timeline; timelines left without
// listeners are dropped and the shrunk channel set is announced.
func (s *Socket) Unlisten(timelines []string, l *Listener) {
	s.mu.Lock()
	shrunk := false
	for _, id := range timelines {
		set, ok := s.subscriptions[id]
		if !ok {
			continue
		}
		delete(set, l)
		if len(set) == 0 {
			delete(s.subscriptions, id)
			shrunk = true
		}
	}
	channels := s.channelsLocked()
	s.mu.Unlock()

	if shrunk {
		if err := s.writeFrame(frame{Type: frameUnlisten, Channels: channels}); err != nil && !errors.Is(err, errNotConnected) {
			s.log.Warn("unlisten frame failed", "err", err)
		}
	}
}

// Ping sends an application-level ping frame.
func (s *Socket) Ping() error {
	return s.writeFrame(frame{Type: framePing})
}

// IsOpen reports whether a connection is currently established.
func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// WaitOpen polls for an established connection, failing after ten attempts
// at 200ms intervals.
func (s *Socket) WaitOpen(ctx context.Context) error {
	for attempt := 0; attempt < waitOpenMaxAttempts; attempt++ {
		if s.IsOpen() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return errors.New("socket closed")
		case <-time.After(waitOpenInterval):
		}
	}
	return errors.New("socket did not open in time")
}
