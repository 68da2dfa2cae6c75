package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/arcadebox/games/room"
	"github.com/Seednode/arcadebox/games/scores"
)

func testConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		port:           8080,
		gridSize:       10,
		snakeTick:      5 * time.Millisecond,
		dodgeTick:      5 * time.Millisecond,
		frameInterval:  5 * time.Millisecond,
		sessionTimeout: time.Minute,
		tokenTTL:       time.Hour,
	}
}

type testServer struct {
	*httptest.Server
	store   *scores.Store
	arcades []*Arcade
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testConfig()

	store, err := scores.Open("")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	signer := room.NewSigner(bytes.Repeat([]byte("k"), 32), cfg.tokenTTL)
	arcades := newArcades(ctx, cfg, signer, store)
	srv := httptest.NewServer(newRouter(cfg, store, arcades, make(chan error, 64)))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		for _, a := range arcades {
			a.rooms.CloseAll()
		}
	})

	return &testServer{Server: srv, store: store, arcades: arcades}
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func (s *testServer) newRoom(t *testing.T, variant string) string {
	t.Helper()

	client := &http.Client{CheckRedirect: noRedirect}

	resp, err := client.Get(s.URL + "/" + variant)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want redirect", resp.StatusCode)
	}

	loc := resp.Header.Get("Location")
	code := strings.TrimPrefix(loc, "/"+variant+"/")
	if !room.ValidCode(code) {
		t.Fatalf("redirected to %q", loc)
	}

	return code
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	url = "ws" + strings.TrimPrefix(url, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", url, err, status)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, name string) room.Message {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg room.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if msg.Name == name {
			return msg
		}
	}
}

func TestDisplayAndControllerJoin(t *testing.T) {
	srv := newTestServer(t)
	code := srv.newRoom(t, "snake")

	resp, err := http.Get(srv.URL + "/snake/" + code)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("display page status = %d", resp.StatusCode)
	}

	display := dial(t, srv.URL+"/snake/"+code+"/ws")

	var info room.SessionInfo
	if err := json.Unmarshal(readUntil(t, display, room.MsgSession).Payload, &info); err != nil {
		t.Fatal(err)
	}
	if info.Role != room.RoleDisplay || info.Room != code || info.Variant != "snake" {
		t.Fatalf("display session = %+v", info)
	}
	if !strings.Contains(info.JoinURL, "/snake/"+code+"/play?t=") {
		t.Fatalf("join url = %q", info.JoinURL)
	}

	page, err := http.Get(info.JoinURL)
	if err != nil {
		t.Fatal(err)
	}
	page.Body.Close()
	if page.StatusCode != http.StatusOK {
		t.Fatalf("controller page status = %d", page.StatusCode)
	}

	pad := dial(t, strings.Replace(info.JoinURL, "/play?", "/ws?", 1))

	var padInfo room.SessionInfo
	if err := json.Unmarshal(readUntil(t, pad, room.MsgSession).Payload, &padInfo); err != nil {
		t.Fatal(err)
	}
	if padInfo.Role != room.RoleController || padInfo.JoinURL != "" {
		t.Fatalf("controller session = %+v", padInfo)
	}

	if err := pad.WriteJSON(room.Message{Name: room.CmdSetUsername, Payload: json.RawMessage(`"ada"`)}); err != nil {
		t.Fatal(err)
	}

	msg := readUntil(t, display, room.MsgUsername)
	if msg.Text() != "ada" {
		t.Fatalf("username = %q", msg.Text())
	}

	frame := readUntil(t, display, room.MsgFrame)

	var payload struct {
		Variant string `json:"variant"`
		State   struct {
			Width int `json:"width"`
		} `json:"state"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Variant != "snake" || payload.State.Width != 10 {
		t.Fatalf("frame = %s", frame.Payload)
	}
}

func TestControllerNeedsToken(t *testing.T) {
	srv := newTestServer(t)
	code := srv.newRoom(t, "dodge")

	for _, path := range []string{
		"/dodge/" + code + "/play",
		"/dodge/" + code + "/play?t=garbage",
		"/dodge/" + code + "/ws?t=garbage",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("GET %s = %d, want 403", path, resp.StatusCode)
		}
	}
}

func TestTokenIsBoundToRoom(t *testing.T) {
	srv := newTestServer(t)
	first := srv.newRoom(t, "snake")
	second := srv.newRoom(t, "snake")

	display := dial(t, srv.URL+"/snake/"+first+"/ws")

	var info room.SessionInfo
	if err := json.Unmarshal(readUntil(t, display, room.MsgSession).Payload, &info); err != nil {
		t.Fatal(err)
	}

	other := strings.Replace(info.JoinURL, "/"+first+"/", "/"+second+"/", 1)

	resp, err := http.Get(other)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestUnknownRooms(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/snake/nope", http.StatusNotFound},
		{"/snake/ABCDEF/qr", http.StatusNotFound},
		{"/snake/ABCDEF/ws", http.StatusNotFound},
		{"/dodge/ABCDEF/play", http.StatusNotFound},
	}

	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestQRCode(t *testing.T) {
	srv := newTestServer(t)
	code := srv.newRoom(t, "snake")

	resp, err := http.Get(srv.URL + "/snake/" + code + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("body is not a PNG")
	}
}

func TestStaticRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "Highscores"},
		{"/healthz", "Ok"},
		{"/version", "arcadebox v" + releaseVersion},
		{"/assets/arcade/display.js", "requestAnimationFrame"},
		{"/assets/arcade/controller.js", "submit-email"},
		{"/favicons/site.webmanifest", "arcadebox"},
	}

	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", tt.path, resp.StatusCode)
			continue
		}
		if !strings.Contains(buf.String(), tt.contains) {
			t.Errorf("GET %s does not contain %q", tt.path, tt.contains)
		}
		if resp.Header.Get("Content-Security-Policy") == "" {
			t.Errorf("GET %s is missing security headers", tt.path)
		}
	}
}

func TestProfileRoomStats(t *testing.T) {
	cfg := testConfig()
	cfg.profile = true

	store, err := scores.Open("")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arcades := newArcades(ctx, cfg, room.NewSigner(bytes.Repeat([]byte("k"), 32), time.Hour), store)
	defer func() {
		for _, a := range arcades {
			a.rooms.CloseAll()
		}
	}()
	arcades[1].rooms.Create()

	srv := httptest.NewServer(newRouter(cfg, store, arcades, make(chan error, 64)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pprof/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats []roomStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].Variant != "snake" || stats[0].Rooms != 0 || stats[1].Rooms != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := map[int64]string{
		999:     "999 B",
		1000:    "1.0 kB",
		1500000: "1.5 MB",
	}

	for in, want := range tests {
		if got := humanReadableSize(in); got != want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSecondDisplayIsRefused(t *testing.T) {
	srv := newTestServer(t)
	code := srv.newRoom(t, "snake")

	display := dial(t, srv.URL+"/snake/"+code+"/ws")
	readUntil(t, display, room.MsgSession)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/snake/" + code + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("tokenless socket joined a room that has a display")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("response = %v, want 409", resp)
	}

	display.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("display seat not freed after disconnect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
