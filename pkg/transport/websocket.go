// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	closeTimeout     = time.Second
	eventQueueSize   = 256
)

type eventKind int

const (
	openEvent eventKind = iota
	textEvent
	errorEvent
)

type event struct {
	conn *wsConn
	kind eventKind
	text string
	err  error
}

// WebSocket is a Transport based on WebSocket text messages.
//
// There are two variants, a plain one for ws:// URLs and a secure one for wss:// URLs. NewWebSocket picks the variant
// by the URL's scheme.
type WebSocket struct {
	scheme string
	dialer *websocket.Dialer
	events chan event

	handlerMutex sync.Mutex
	handler      Handler
}

// NewWebSocket creates a WebSocket Transport fitting the scheme of the given URL.
// The certificate verification for secure connections might be disabled by insecureSkipVerify.
func NewWebSocket(rawUrl string, insecureSkipVerify bool) *WebSocket {
	if strings.HasPrefix(rawUrl, "wss://") {
		return newSecureWebSocket(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify,
		})
	}
	return newPlainWebSocket()
}

func newPlainWebSocket() *WebSocket {
	return &WebSocket{
		scheme: "ws",
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		events: make(chan event, eventQueueSize),
	}
}

func newSecureWebSocket(tlsConfig *tls.Config) *WebSocket {
	return &WebSocket{
		scheme: "wss",
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig:  tlsConfig,
		},
		events: make(chan event, eventQueueSize),
	}
}

// SetHandler for all future events.
func (t *WebSocket) SetHandler(h Handler) {
	t.handlerMutex.Lock()
	defer t.handlerMutex.Unlock()

	t.handler = h
}

// Open a new connection. Dialing happens in the background and its result is reported while polling.
func (t *WebSocket) Open(rawUrl string) (Conn, error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	} else if u.Scheme != t.scheme {
		return nil, fmt.Errorf("%s transport cannot open %q", t.scheme, rawUrl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		transport: t,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go c.run(ctx, u.String())

	return c, nil
}

// PollOne delivers at most one queued event without blocking.
func (t *WebSocket) PollOne() int {
	select {
	case ev := <-t.events:
		t.handlerMutex.Lock()
		h := t.handler
		t.handlerMutex.Unlock()

		if h == nil {
			return 1
		}

		switch ev.kind {
		case openEvent:
			h.OnOpen(ev.conn)
		case textEvent:
			h.OnText(ev.conn, ev.text)
		case errorEvent:
			h.OnError(ev.conn, ev.err)
		}
		return 1

	default:
		return 0
	}
}

type connState int

const (
	connecting connState = iota
	open
	closed
)

type wsConn struct {
	sync.Mutex

	transport *WebSocket
	ws        *websocket.Conn
	state     connState

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) run(ctx context.Context, rawUrl string) {
	logger := log.WithField("url", rawUrl)

	ws, _, err := c.transport.dialer.DialContext(ctx, rawUrl, nil)
	if err != nil {
		logger.WithError(err).Debug("Dialing WebSocket errored")

		c.Lock()
		wasClosed := c.state == closed
		c.state = closed
		c.Unlock()

		if !wasClosed {
			c.push(event{conn: c, kind: errorEvent, err: err})
		}
		return
	}

	c.Lock()
	if c.state == closed {
		c.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.state = open
	c.Unlock()

	logger.Debug("WebSocket connection established")
	c.push(event{conn: c, kind: openEvent})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			c.Lock()
			wasClosed := c.state == closed
			c.state = closed
			c.Unlock()

			_ = ws.Close()

			if !wasClosed {
				logger.WithError(err).Debug("Reading from WebSocket errored")
				c.push(event{conn: c, kind: errorEvent, err: err})
			}
			return
		}

		if messageType != websocket.TextMessage {
			logger.WithField("message type", messageType).Debug("Ignoring non-text WebSocket message")
			continue
		}

		c.push(event{conn: c, kind: textEvent, text: string(data)})
	}
}

func (c *wsConn) push(ev event) {
	select {
	case c.transport.events <- ev:
	case <-c.done:
	}
}

// Send a text frame.
func (c *wsConn) Send(text string) error {
	c.Lock()
	defer c.Unlock()

	if c.state != open {
		return ErrNotOpen
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a close frame with the given reason and shuts down the connection.
func (c *wsConn) Close(reason string) (err error) {
	c.closeOnce.Do(func() {
		c.Lock()
		wasOpen := c.state == open
		c.state = closed
		ws := c.ws
		c.Unlock()

		c.cancel()
		close(c.done)

		if !wasOpen {
			return
		}

		deadline := time.Now().Add(closeTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		if err = ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			_ = ws.Close()
			return
		}

		// The reader returns after the peer's close frame or the deadline and closes the underlying connection.
		_ = ws.SetReadDeadline(deadline)
	})
	return
}

// IsOpen reports if the connection is established and not closed.
func (c *wsConn) IsOpen() bool {
	c.Lock()
	defer c.Unlock()

	return c.state == open
}
