// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/transport"
)

const (
	supervisionDelay  = 5 * time.Second
	reconnectThrottle = 2 * time.Second
	pingTimeout       = 20 * time.Second
	reconnectTimeout  = 5 * time.Second
	collectInterval   = 100 * time.Millisecond
	pollIdleYield     = 10 * time.Millisecond
)

// Connect starts a new session to the broker. Failures are reported to the OnError callbacks.
func (c *Client) Connect() {
	c.logger.WithField("url", c.opts.URL).Info("Connecting to RTI broker")
	c.connect()
}

func (c *Client) connect() {
	now := c.now()
	c.connectTime = now
	c.lastPing = now
	c.lastReconnect = now
	c.cid = 0
	c.handshakeCid = 0
	c.connectCalled = true
	c.connectAttempted = true
	c.phase = Connecting

	// Calls of the previous session fail once the new one is in place, as their cids are reused.
	defer c.abandonCalls("connection reset")

	if c.conn != nil {
		_ = c.conn.Close("reconnect")
	}
	c.connOpened = false
	c.connFailed = false

	conn, err := c.transport.Open(c.opts.URL)
	if err != nil {
		c.conn = nil
		c.notifyError("connection", err.Error())
		return
	}
	c.conn = conn
}

// Disconnect closes the session. The Client stays disconnected until Connect is called again.
func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from RTI broker")
	c.disconnect()
}

func (c *Client) disconnect() {
	if c.conn != nil {
		if err := c.conn.Close(""); err != nil {
			c.logger.WithError(err).Debug("Closing connection errored")
		}
		c.transport.PollOne()
		c.conn = nil
	}

	c.lastPing = time.Time{}
	c.lastReconnect = time.Time{}
	c.connectCalled = false
	c.shouldBeConnected = false

	if c.phase != Disconnected {
		c.phase = Disconnected
		c.notifyDisconnected()
	}
}

// reconnect after the session was lost or stalled.
func (c *Client) reconnect(reason string) {
	c.logger.WithField("reason", reason).Info("Reconnecting to RTI broker")
	c.metrics.reconnects.Inc()
	c.connect()
}

// Poll handles at most one transport event and supervises the session. It never blocks and returns the number of
// handled transport events.
func (c *Client) Poll() int {
	if !c.connectCalled {
		return 0
	}

	n := c.transport.PollOne()
	c.watchdog()
	return n
}

// PollForever polls until the context is done, yielding shortly whenever nothing was to be done.
func (c *Client) PollForever(ctx context.Context) error {
	ticker := time.NewTicker(pollIdleYield)
	defer ticker.Stop()

	for {
		if c.Poll() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// connClosed reports whether the current connection failed or was closed after being opened. A connection which is
// still dialing is not closed.
func (c *Client) connClosed() bool {
	if c.conn == nil || c.connFailed {
		return true
	}
	return c.connOpened && !c.conn.IsOpen()
}

func (c *Client) watchdog() {
	now := c.now()

	if c.phase >= Connecting && !c.shouldBeConnected && now.Sub(c.connectTime) > supervisionDelay {
		c.shouldBeConnected = true
	}

	if !c.shouldBeConnected {
		return
	}

	if c.connClosed() {
		if c.phase >= Connecting {
			c.logger.Info("Lost connection to RTI broker")
			c.phase = Disconnected
			c.notifyDisconnected()
			c.lastReconnect = now
		}
		if now.Sub(c.lastReconnect) > reconnectThrottle {
			c.reconnect("connection closed")
		}
		return
	}

	if now.Sub(c.lastCollect) > collectInterval {
		c.lastCollect = now
		c.collectMeasurements()
	}

	if !c.lastPing.IsZero() && c.phase >= Connecting && now.Sub(c.lastPing) > pingTimeout {
		c.notifyError("connection", "Ping timeout")
		c.disconnect()
		c.reconnect("ping timeout")
	} else if !c.lastReconnect.IsZero() && c.phase < Connected && now.Sub(c.lastReconnect) > reconnectTimeout {
		c.notifyError("connection", "Reconnect timeout")
		c.disconnect()
		c.reconnect("reconnect timeout")
	}
}

// send a text frame on the current connection.
func (c *Client) send(text string) error {
	if c.conn == nil {
		if !c.connectAttempted {
			return ErrConnectNotCalled
		}
		c.metrics.framesDropped.Inc()
		return nil
	}

	if err := c.conn.Send(text); errors.Is(err, transport.ErrNotOpen) {
		c.logger.Debug("Dropping frame, connection is not open")
		c.metrics.framesDropped.Inc()
	} else if err != nil {
		c.notifyError("connection", err.Error())
	} else {
		c.metrics.framesSent.Inc()
	}
	return nil
}

func (c *Client) sendEnvelope(env envelope) error {
	return c.send(env.String())
}

func (c *Client) nextCid() uint64 {
	c.cid++
	return c.cid
}

func (c *Client) sendAuth() {
	env, err := newEnvelope("auth", authToken{
		ClientID:             c.opts.ClientID,
		ClientLibraryVersion: ClientLibraryVersion,
		Application:          c.opts.Application,
		Federation:           c.opts.Federation,
		Secret:               c.opts.Secret,
		User:                 c.opts.User,
		Password:             c.opts.Password,
	}, 0)
	if err != nil {
		c.notifyError("connection", err.Error())
		return
	}
	_ = c.sendEnvelope(env)
}

// sessionHandler receives the transport events of a Client.
type sessionHandler struct {
	c *Client
}

func (h sessionHandler) OnOpen(conn transport.Conn) {
	c := h.c
	if conn != c.conn {
		return
	}

	c.logger.Debug("Connection opened, sending handshake")
	c.connOpened = true
	c.handshakeCid = c.nextCid()
	_ = c.sendEnvelope(envelope{Event: "#handshake", Cid: c.handshakeCid})
	c.shouldBeConnected = true
}

func (h sessionHandler) OnError(conn transport.Conn, err error) {
	c := h.c
	if conn != c.conn {
		return
	}

	c.connFailed = true
	c.notifyError("connection", err.Error())
}

func (h sessionHandler) OnText(conn transport.Conn, text string) {
	c := h.c
	if conn != c.conn {
		return
	}

	c.metrics.framesReceived.Inc()

	switch {
	case text == "":
		_ = c.send("")
		c.lastPing = c.now()

	case text == "#1":
		_ = c.send("#2")
		c.lastPing = c.now()

	case strings.HasPrefix(text, "{"):
		var env envelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			c.logger.WithError(err).WithField("frame", text).Warn("Unmarshalling envelope errored")
			return
		}
		c.handleEnvelope(env)

	default:
		c.logger.WithField("frame", text).Debug("Ignoring unknown frame")
	}
}

func (c *Client) handleEnvelope(env envelope) {
	switch {
	case env.Event == "" && env.Rid != 0 && env.Rid == c.handshakeCid:
		c.logger.Debug("Handshake completed, authenticating")
		c.sendAuth()
		c.phase = Authenticating

	case env.Event == "#setAuthToken":
		c.onAuthenticated()

	case env.Event == "#removeAuthToken":
		c.logger.Debug("Auth token removed, authenticating again")
		c.sendAuth()

	case env.Event == "#publish":
		var pd publishData
		if err := json.Unmarshal(env.Data, &pd); err != nil {
			c.logger.WithError(err).Warn("Unmarshalling publish event errored")
			return
		}
		c.dispatch(c.localChannelName(pd.Channel), textOf(pd.Data))

	case env.Event == "fail":
		c.shouldBeConnected = false
		c.notifyError("fail", textOf(env.Data))

	case env.Event == "broker-version":
		c.brokerVersion = textOf(env.Data)
		c.logger.WithField("version", c.brokerVersion).Debug("Received broker version")

	case env.Event == "ping":
		_ = c.sendEnvelope(envelope{Event: "pong", Data: env.Data})

	case env.Event != "":
		if env.Cid != 0 || strings.HasPrefix(env.Event, "#") {
			c.logger.WithField("event", env.Event).Debug("Ignoring event")
			return
		}
		if l, ok := c.eventListeners[env.Event]; ok {
			data := textOf(env.Data)
			for _, fn := range l.snapshot() {
				fn(data)
			}
		}

	case env.Rid != 0:
		c.resolve(env)
	}
}

func (c *Client) onAuthenticated() {
	c.lastPing = c.now()

	if c.phase != Connected {
		first := !c.firstConnected
		c.firstConnected = true
		c.phase = Connected

		c.logger.WithField("first", first).Info("Connected to RTI broker")

		c.notifyConnected(first)

		if !c.opts.Incognito {
			c.publishClient()
			c.publishMeasures()
		}
	}

	channels := make([]string, 0, len(c.subscriptions))
	for channel, l := range c.subscriptions {
		if l.len() > 0 {
			channels = append(channels, channel)
		}
	}
	sort.Strings(channels)

	for _, channel := range channels {
		c.sendSubscribe(channel)
	}

	c.logger.WithFields(log.Fields{
		"subscriptions": len(channels),
	}).Debug("Subscribed to channels")
}
