// Package bridge carries messages between the long-lived background
// process and the transient contexts (popup, options page, sandboxed
// script host) over a WebSocket endpoint. Messages addressed to another
// context are forwarded, replies to pending correlation ids are delivered
// out of band, and everything else goes through the message router.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wordbridge/pkg/router"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 18755

	// backgroundTarget is this process's own consumer name; messages
	// addressed to it (or to nobody) are routed locally.
	backgroundTarget = "background"

	// callbackAction is the action a context uses to answer a forwarded
	// message; its params carry the response envelope.
	callbackAction = "callback"
)

// RouteFunc dispatches one locally-consumed message.
type RouteFunc func(ctx context.Context, msg router.Message, sender router.Sender) (router.Response, error)

// Config holds bridge bind settings.
type Config struct {
	Host string
	Port int
}

// reply is the server→client envelope for direct responses and completed
// callbacks.
type reply struct {
	CallbackID string          `json:"callbackId,omitempty"`
	Response   router.Response `json:"response"`
}

type client struct {
	id   int
	name string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *client) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Service is the WebSocket bridge. One instance serves every transient
// context of the extension.
type Service struct {
	cfg       Config
	log       *slog.Logger
	route     RouteFunc
	callbacks *CallbackTable
	upgrader  websocket.Upgrader

	mu        sync.RWMutex
	clients   map[int]*client
	byName    map[string]*client
	nextID    int
	startedAt time.Time
}

// NewService creates a bridge dispatching local messages through route.
func NewService(cfg Config, route RouteFunc, callbacks *CallbackTable, log *slog.Logger) (*Service, error) {
	if route == nil {
		return nil, errors.New("bridge: route function is required")
	}
	if callbacks == nil {
		callbacks = NewCallbackTable(0, 0)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		log:       log.With("component", "bridge.service"),
		route:     route,
		callbacks: callbacks,
		clients:   make(map[int]*client),
		byName:    make(map[string]*client),
	}, nil
}

// Callbacks exposes the correlation table so handlers can register
// pending replies.
func (s *Service) Callbacks() *CallbackTable { return s.callbacks }

// Run serves the bridge until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}
	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleHealth)

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Bridge started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start bridge server: %w", err)
	}
	return nil
}

// Handler returns the bridge's HTTP handler for serving on an external
// listener, used by tests.
func (s *Service) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleHealth)
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	payload := map[string]any{
		"status":  "ok",
		"clients": len(s.clients),
	}
	if !s.startedAt.IsZero() {
		payload["uptime_seconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write health response", "error", err)
	}
}

func (s *Service) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	c := s.register(name, conn)
	defer s.unregister(c)

	s.log.Info("Context connected", "name", c.name, "client_id", c.id)
	s.readLoop(ctx, c, r)
	s.log.Info("Context disconnected", "name", c.name, "client_id", c.id)
}

func (s *Service) register(name string, conn *websocket.Conn) *client {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := &client{id: s.nextID, name: name, conn: conn}
	s.clients[c.id] = c
	if name != "" {
		s.byName[name] = c
	}
	return c
}

func (s *Service) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	if c.name != "" && s.byName[c.name] == c {
		delete(s.byName, c.name)
	}
	s.mu.Unlock()

	_ = c.conn.Close()
}

func (s *Service) readLoop(ctx context.Context, c *client, r *http.Request) {
	sender := router.Sender{
		TabID:  c.id,
		URL:    r.RemoteAddr,
		Origin: c.name,
	}

	for {
		var msg router.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Read failed", "client_id", c.id, "error", err)
			}
			return
		}

		s.dispatch(ctx, c, msg, sender)
	}
}

func (s *Service) dispatch(ctx context.Context, c *client, msg router.Message, sender router.Sender) {
	// Completed correlation replies never touch the router.
	if msg.Action == callbackAction && msg.CallbackID != "" {
		var resp router.Response
		if err := json.Unmarshal(msg.Params, &resp); err != nil {
			s.log.Error("Malformed callback params", "callback_id", msg.CallbackID, "error", err)
			return
		}
		if !s.callbacks.Complete(msg.CallbackID, resp) {
			s.log.Debug("Callback expired or unknown", "callback_id", msg.CallbackID)
		}
		return
	}

	// Messages addressed to another consumer are forwarded, not routed.
	if msg.Target != "" && msg.Target != backgroundTarget {
		if err := s.Forward(ctx, msg); err != nil {
			s.replyTo(c, msg.CallbackID, router.Fail(err.Error()))
		}
		return
	}

	resp, err := s.route(ctx, msg, sender)
	if err != nil {
		// Routing errors are infrastructure failures; the calling UI
		// still gets a resolved envelope.
		s.log.Error("Routing failed", "action", msg.Action, "error", err)
		resp = router.Fail(err.Error())
	}

	s.replyTo(c, msg.CallbackID, resp)
}

func (s *Service) replyTo(c *client, callbackID string, resp router.Response) {
	if err := c.send(reply{CallbackID: callbackID, Response: resp}); err != nil {
		s.log.Error("Failed to write reply", "client_id", c.id, "error", err)
	}
}

// Forward delivers msg to the connected context named by msg.Target.
func (s *Service) Forward(_ context.Context, msg router.Message) error {
	s.mu.RLock()
	target, ok := s.byName[msg.Target]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("bridge: target %q is not connected", msg.Target)
	}
	if err := target.send(msg); err != nil {
		return fmt.Errorf("bridge: forward to %q: %w", msg.Target, err)
	}
	return nil
}

// Notify delivers a completed callback response to the context identified
// by sender.
func (s *Service) Notify(_ context.Context, sender router.Sender, callbackID string, resp router.Response) error {
	s.mu.RLock()
	c, ok := s.clients[sender.TabID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("bridge: client %d is not connected", sender.TabID)
	}
	if err := c.send(reply{CallbackID: callbackID, Response: resp}); err != nil {
		return fmt.Errorf("bridge: notify client %d: %w", sender.TabID, err)
	}
	return nil
}
