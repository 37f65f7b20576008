// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	opened int
	texts  []string
	errs   []error
}

func (h *recordingHandler) OnOpen(_ Conn) {
	h.opened++
}

func (h *recordingHandler) OnText(_ Conn, text string) {
	h.texts = append(h.texts, text)
}

func (h *recordingHandler) OnError(_ Conn, err error) {
	h.errs = append(h.errs, err)
}

// pollUntil polls the Transport until the condition holds or fails the test after a timeout.
func pollUntil(t *testing.T, tr Transport, cond func() bool) {
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition was not met in time")
		}
		if tr.PollOne() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			t.Log(err)
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	wsUrl := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := NewWebSocket(wsUrl, false)
	h := &recordingHandler{}
	tr.SetHandler(h)

	conn, err := tr.Open(wsUrl)
	if err != nil {
		t.Fatal(err)
	}

	pollUntil(t, tr, func() bool { return h.opened == 1 })
	if !conn.IsOpen() {
		t.Fatal("connection is not open after open event")
	}

	for _, msg := range []string{"", "#1", `{"event":"#publish"}`} {
		if err := conn.Send(msg); err != nil {
			t.Fatal(err)
		}
	}
	pollUntil(t, tr, func() bool { return len(h.texts) == 3 })

	if h.texts[0] != "" || h.texts[1] != "#1" || h.texts[2] != `{"event":"#publish"}` {
		t.Fatalf("unexpected texts: %q", h.texts)
	}

	if err := conn.Close("bye"); err != nil {
		t.Fatal(err)
	}
	if conn.IsOpen() {
		t.Fatal("connection is still open after closing")
	}
	if err := conn.Send("too late"); err != ErrNotOpen {
		t.Fatalf("expected %v, got %v", ErrNotOpen, err)
	}

	// A locally closed connection must not report an error.
	time.Sleep(100 * time.Millisecond)
	for tr.PollOne() > 0 {
	}
	if len(h.errs) != 0 {
		t.Fatalf("expected no errors, got %v", h.errs)
	}
}

func TestWebSocketPeerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if conn, err := upgrader.Upgrade(rw, r, nil); err == nil {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	wsUrl := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := NewWebSocket(wsUrl, false)
	h := &recordingHandler{}
	tr.SetHandler(h)

	conn, err := tr.Open(wsUrl)
	if err != nil {
		t.Fatal(err)
	}

	pollUntil(t, tr, func() bool { return len(h.errs) == 1 })
	if conn.IsOpen() {
		t.Fatal("connection is still open after the peer left")
	}
}

func TestWebSocketDialError(t *testing.T) {
	srv := echoServer(t)
	wsUrl := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	tr := NewWebSocket(wsUrl, false)
	h := &recordingHandler{}
	tr.SetHandler(h)

	if _, err := tr.Open(wsUrl); err != nil {
		t.Fatal(err)
	}

	pollUntil(t, tr, func() bool { return len(h.errs) == 1 })
	if h.opened != 0 {
		t.Fatal("open event for a failed dial")
	}
}

func TestWebSocketSchemeMismatch(t *testing.T) {
	tests := []struct {
		transportUrl string
		openUrl      string
		valid        bool
	}{
		{"ws://localhost:8000/", "ws://localhost:8000/", true},
		{"ws://localhost:8000/", "wss://example.com/", false},
		{"wss://example.com/", "wss://example.com/", true},
		{"wss://example.com/", "ws://localhost:8000/", false},
		{"ws://localhost:8000/", "://", false},
	}

	for _, test := range tests {
		tr := NewWebSocket(test.transportUrl, true)
		conn, err := tr.Open(test.openUrl)
		if (err == nil) != test.valid {
			t.Fatalf("%s on %s transport: expected valid = %t, got %v", test.openUrl, test.transportUrl, test.valid, err)
		}
		if conn != nil {
			_ = conn.Close("")
		}
	}
}
