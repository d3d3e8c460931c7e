/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/bubblebox/bubbles"
)

func newTestRouter(t *testing.T) (*httprouter.Router, *SceneManager) {
	t.Helper()

	cfg := validConfig()
	cfg.log = zerolog.Nop()

	mux, scenes := newRouter(cfg, make(chan error, 64))
	t.Cleanup(scenes.Close)

	return mux, scenes
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

func TestStaticRoutes(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok\n", rec.Body.String())

	rec = do(mux, http.MethodGet, "/version", "")
	assert.Equal(t, "bubblebox v"+releaseVersion+"\n", rec.Body.String())

	rec = do(mux, http.MethodGet, "/robots.txt", "")
	assert.Contains(t, rec.Body.String(), "GPTBot")

	rec = do(mux, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/scene"`)
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))

	rec = do(mux, http.MethodGet, "/assets/scene/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/javascript")

	// Bubbles follow the locally animated anchors rather than the last snapshot.
	assert.Contains(t, rec.Body.String(), "anchors[view.speaker_id]")

	rec = do(mux, http.MethodGet, "/assets/scene/missing.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewSceneRedirect(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodGet, "/scene", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/scene/"))
	assert.Len(t, strings.TrimPrefix(location, "/scene/"), sceneIDLength)

	rec = do(mux, http.MethodGet, location, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/assets/scene/app.js")
}

func TestSpeakAndBubbles(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodGet, "/scene/kitchen/bubbles", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(mux, http.MethodPost, "/scene/kitchen/speak", `{"speaker":"chef","text":"Hi."}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(mux, http.MethodPost, "/scene/kitchen/speak", `{"speaker":"chef","text":"Hello again."}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(mux, http.MethodGet, "/scene/kitchen/bubbles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap SnapshotMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "kitchen", snap.Scene)
	require.Len(t, snap.Speakers, 1)
	assert.Equal(t, "chef", snap.Speakers[0].SpeakerID)
	assert.Equal(t, bubbles.Speaking, snap.Speakers[0].State)
}

func TestSpeakRejectsBadRequests(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodPost, "/scene/kitchen/speak", `{"speaker":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodPost, "/scene/kitchen/speak", `{"speaker":"  ","text":"Hi."}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bubblebox_rejected_speaks_total")
	assert.Contains(t, rec.Body.String(), "bubblebox_active_scenes")
}

func TestQRCode(t *testing.T) {
	mux, _ := newTestRouter(t)

	rec := do(mux, http.MethodGet, "/scene/kitchen/qr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestReapIdleScenes(t *testing.T) {
	mux, scenes := newTestRouter(t)

	rec := do(mux, http.MethodPost, "/scene/kitchen/speak", `{"speaker":"chef","text":"Hi."}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	hub, ok := scenes.lookup("kitchen")
	require.True(t, ok)

	assert.Zero(t, scenes.reap(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, scenes.reap(time.Now().Add(time.Hour)))

	_, ok = scenes.lookup("kitchen")
	assert.False(t, ok)

	select {
	case <-hub.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	assert.ErrorIs(t, hub.engine.Speak("chef", "Anyone there?"), bubbles.ErrClosed)
}

func readUntil(t *testing.T, conn *websocket.Conn, done func(map[string]any) bool) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))

		if done(msg) {
			return msg
		}
	}
}

func hasBubble(msg map[string]any) bool {
	if msg["type"] != "snapshot" {
		return false
	}

	speakers, _ := msg["speakers"].([]any)
	for _, s := range speakers {
		view, _ := s.(map[string]any)
		if b, _ := view["bubbles"].([]any); len(b) > 0 {
			return true
		}
	}

	return false
}

func TestWebsocketRoundTrip(t *testing.T) {
	mux, _ := newTestRouter(t)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/scene/kitchen/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	first := readUntil(t, conn, func(map[string]any) bool { return true })
	assert.Equal(t, "snapshot", first["type"])
	assert.Equal(t, "kitchen", first["scene"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "viewport", Width: 1600, Height: 900}))
	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    "anchor",
		Speaker: "chef",
		Anchor:  &bubbles.Anchor{XPct: 50, YPct: 75, HeadTopYPct: 57, FaceHeightPx: 160},
	}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "speak", Speaker: "chef", Text: "Who moved my whisk?"}))

	snap := readUntil(t, conn, hasBubble)
	assert.Equal(t, "snapshot", snap["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "speak", Speaker: "chef", Text: "Hello?"}))

	rejected := readUntil(t, conn, func(msg map[string]any) bool { return msg["type"] == "rejected" })
	assert.Equal(t, "chef", rejected["speaker"])
	assert.Contains(t, rejected["message"], "already speaking")
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

func TestProfileRoutes(t *testing.T) {
	cfg := validConfig()
	cfg.log = zerolog.Nop()
	cfg.profile = true

	mux, scenes := newRouter(cfg, make(chan error, 64))
	t.Cleanup(scenes.Close)

	rec := do(mux, http.MethodGet, "/pprof/cmdline", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(mux, http.MethodGet, "/pprof/heap", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebsocketRejectsOversizedMessages(t *testing.T) {
	mux, scenes := newTestRouter(t)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/scene/kitchen/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	first := readUntil(t, conn, func(map[string]any) bool { return true })
	require.Equal(t, "snapshot", first["type"])

	big := strings.Repeat("a", maxMessageSize+1)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "speak", Speaker: "chef", Text: big}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		err = conn.ReadJSON(&msg)
		if err != nil {
			break
		}
	}
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrDeadlineExceeded), "connection was not closed: %v", err)

	hub, ok := scenes.lookup("kitchen")
	require.True(t, ok)
	assert.True(t, hub.engine.Idle("chef"))
}
