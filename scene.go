/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Scenes
//
// A scene is one live stage of speaking characters. Every browser renderer
// connected to /scene/:sceneid/ws shares the same bubble engine:
// - renderers report the viewport, UI chrome and per-frame speaker anchors
// - speech arrives over the websocket or POST /scene/:sceneid/speak
// - every engine change is broadcast to all renderers as a snapshot
// - a second utterance for a busy speaker is rejected back to its sender
// - scenes are reaped after a configurable idle timeout
// - random 8-char scene IDs via crypto/rand, with server-side collision check
// - QR code for the scene URL, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/bubblebox/bubbles"
	"github.com/Seednode/bubblebox/internal/metrics"
)

const (
	sceneIDLength = 8

	// maxMessageSize caps websocket messages and REST speak bodies alike.
	maxMessageSize = 1 << 16
)

// Messages coming from renderers
type ClientMessage struct {
	Type    string          `json:"type"`              // "viewport", "chrome", "anchor", "speak", "leave"
	Width   float64         `json:"width,omitempty"`   // viewport
	Height  float64         `json:"height,omitempty"`  // viewport
	Regions []bubbles.Rect  `json:"regions,omitempty"` // chrome
	Speaker string          `json:"speaker,omitempty"` // anchor / speak / leave
	Anchor  *bubbles.Anchor `json:"anchor,omitempty"`  // anchor
	Text    string          `json:"text,omitempty"`    // speak
}

// SnapshotMessage carries the full bubble state of a scene.
type SnapshotMessage struct {
	Type     string                `json:"type"` // "snapshot"
	Scene    string                `json:"scene"`
	Viewport bubbles.Viewport      `json:"viewport"`
	Speakers []bubbles.SpeakerView `json:"speakers"`
}

// RejectedMessage is sent only to the renderer whose speak was refused.
type RejectedMessage struct {
	Type    string `json:"type"` // "rejected"
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id     string
	engine *bubbles.Orchestrator
	log    zerolog.Logger

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage
	changes  chan struct{}
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, sceneID string) (*Hub, error) {
	now := time.Now()

	h := &Hub{
		id:         sceneID,
		log:        cfg.log.With().Str("scene", sceneID).Logger(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inbound:    make(chan inboundMessage),
		changes:    make(chan struct{}, 1),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	engine, err := bubbles.New(cfg.engine,
		bubbles.WithLogger(h.log),
		bubbles.WithOnChange(h.changed),
	)
	if err != nil {
		return nil, err
	}
	h.engine = engine

	return h, nil
}

// changed coalesces engine notifications; the run loop broadcasts at most
// one snapshot per pending change.
func (h *Hub) changed() {
	select {
	case h.changes <- struct{}{}:
	default:
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) snapshot() SnapshotMessage {
	v, speakers := h.engine.ViewportSnapshot()

	return SnapshotMessage{
		Type:     "snapshot",
		Scene:    h.id,
		Viewport: v,
		Speakers: speakers,
	}
}

func (h *Hub) run() {
	defer close(h.stopped)

	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			metrics.ConnectedRenderers.Inc()

			h.log.Debug().Int("renderers", len(h.clients)).Msg("renderer connected")

			h.sendTo(c, h.snapshot())

		case c := <-h.unreg:
			h.touch()
			h.drop(c)

		case in := <-h.inbound:
			h.touch()
			h.handleMessage(in)

		case <-h.changes:
			h.broadcast(h.snapshot())

		case <-h.quit:
			h.engine.Close()

			for c := range h.clients {
				h.drop(c)
				_ = c.conn.Close()
			}

			h.log.Debug().Msg("scene closed")

			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
	metrics.ConnectedRenderers.Dec()
}

func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.drop(c)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func (h *Hub) handleMessage(in inboundMessage) {
	msg := in.msg

	switch msg.Type {
	case "viewport":
		h.engine.SetViewport(bubbles.Viewport{Width: msg.Width, Height: msg.Height})

	case "chrome":
		h.engine.SetChrome(msg.Regions)

	case "anchor":
		if msg.Speaker == "" || msg.Anchor == nil {
			return
		}
		h.engine.UpdateAnchor(msg.Speaker, *msg.Anchor)

	case "speak":
		if msg.Speaker == "" {
			return
		}
		if err := h.engine.Speak(msg.Speaker, msg.Text); err != nil {
			h.sendTo(in.client, RejectedMessage{
				Type:    "rejected",
				Speaker: msg.Speaker,
				Message: err.Error(),
			})
		}

	case "leave":
		h.engine.RemoveSpeaker(msg.Speaker)
	}
}

// close stops the hub and its engine. It is safe to call more than once.
func (h *Hub) close() {
	h.once.Do(func() {
		close(h.quit)
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SceneManager holds a set of hubs keyed by scene ID, so each $path/$sceneid
// is its own isolated stage.
type SceneManager struct {
	cfg *Config

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

func newSceneManager(cfg *Config) *SceneManager {
	sm := &SceneManager{
		cfg:         cfg,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sceneTimeout,
		done:        make(chan struct{}),
	}
	if sm.idleTimeout > 0 {
		go sm.reaperLoop()
	}
	return sm
}

func (sm *SceneManager) lookup(sceneID string) (*Hub, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	hub, ok := sm.hubs[sceneID]
	return hub, ok
}

func (sm *SceneManager) getHub(sceneID string) (*Hub, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if hub, ok := sm.hubs[sceneID]; ok {
		return hub, nil
	}

	hub, err := newHub(sm.cfg, sceneID)
	if err != nil {
		return nil, err
	}

	sm.hubs[sceneID] = hub
	metrics.ActiveScenes.Inc()

	go hub.run()

	sm.cfg.log.Info().Str("scene", sceneID).Msg("scene opened")

	return hub, nil
}

// newSceneID generates a crypto-random scene ID and ensures it doesn't
// collide with existing scenes.
func (sm *SceneManager) newSceneID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, sceneIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, sceneIDLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := sm.lookup(id); !exists {
			return id
		}
	}
}

func (sm *SceneManager) remove(sceneID string, hub *Hub) {
	delete(sm.hubs, sceneID)
	metrics.ActiveScenes.Dec()
	hub.close()
}

// reap closes every scene idle since before cutoff.
func (sm *SceneManager) reap(cutoff time.Time) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	reaped := 0
	for id, hub := range sm.hubs {
		if hub.idleSince().Before(cutoff) {
			sm.remove(id, hub)
			reaped++
		}
	}

	return reaped
}

func (sm *SceneManager) reaperLoop() {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sm.reap(time.Now().Add(-sm.idleTimeout)); n > 0 {
				sm.cfg.log.Info().Int("scenes", n).Msg("reaped idle scenes")
			}
		case <-sm.done:
			return
		}
	}
}

// Close shuts down every scene and stops the reaper.
func (sm *SceneManager) Close() {
	sm.closeOnce.Do(func() {
		close(sm.done)
	})

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, hub := range sm.hubs {
		sm.remove(id, hub)
	}
}

// WebSocket handler that picks the hub based on :sceneid
func serveWS(sm *SceneManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, err := sm.getHub(ps.ByName("sceneid"))
		if err != nil {
			http.Error(w, "unable to open scene", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sm.cfg.log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.stopped:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.inbound <- inboundMessage{client: c, msg: msg}:
		case <-h.stopped:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

type speakRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func serveSpeak(cfg *Config, sm *SceneManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var req speakRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
			http.Error(w, "invalid speak request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Speaker) == "" {
			http.Error(w, "missing speaker", http.StatusBadRequest)
			return
		}

		hub, err := sm.getHub(ps.ByName("sceneid"))
		if err != nil {
			http.Error(w, "unable to open scene", http.StatusInternalServerError)
			return
		}
		hub.touch()

		err = hub.engine.Speak(req.Speaker, req.Text)
		switch {
		case errors.Is(err, bubbles.ErrSpeakerBusy):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, bubbles.ErrClosed):
			http.Error(w, "scene closed", http.StatusGone)
			return
		case err != nil:
			errs <- err
			http.Error(w, "speak failed", http.StatusInternalServerError)
			return
		}

		cfg.log.Debug().
			Str("scene", hub.id).
			Str("speaker", req.Speaker).
			Str("ip", realIP(r)).
			Msg("accepted speech")

		w.WriteHeader(http.StatusAccepted)
	}
}

func serveBubbles(cfg *Config, sm *SceneManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := sm.lookup(ps.ByName("sceneid"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(hub.snapshot()); err != nil {
			errs <- err
		}
	}
}

// QR handler: generates a PNG QR code for the current scene URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("sceneid") == "" {
		http.Error(w, "missing scene id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func serveRenderer(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/scene/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "renderer unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewScene handles GET /path by generating a new random scene ID
// (with server-side collision detection) and redirecting to /path/:sceneid.
func redirectNewScene(cfg *Config, path string, sm *SceneManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sceneID := sm.newSceneID()

		cfg.log.Debug().Str("scene", sceneID).Str("ip", realIP(r)).Msg("created scene id")

		http.Redirect(w, r, path+"/"+sceneID, http.StatusTemporaryRedirect)
	}
}

// registerScenes sets up routes so that:
//   - $path                     → redirects to a new random scene (8-char ID)
//   - $path/:sceneid            → HTML renderer
//   - $path/:sceneid/ws         → WebSocket for that scene
//   - $path/:sceneid/qr         → PNG QR code for that scene URL
//   - $path/:sceneid/bubbles    → JSON snapshot
//   - $path/:sceneid/speak      → POST speech for one speaker
func registerScenes(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *SceneManager {
	sm := newSceneManager(cfg)

	path = cfg.prefix + path

	mux.GET(path, redirectNewScene(cfg, path, sm))
	mux.GET(path+"/:sceneid", serveRenderer(cfg, errs))
	mux.GET(path+"/:sceneid/ws", serveWS(sm))
	mux.GET(path+"/:sceneid/qr", qrHandler)
	mux.GET(path+"/:sceneid/bubbles", serveBubbles(cfg, sm, errs))
	mux.POST(path+"/:sceneid/speak", serveSpeak(cfg, sm, errs))

	return sm
}
