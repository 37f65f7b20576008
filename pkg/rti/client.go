// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/transport"
)

// ClientLibraryVersion is reported to the broker and to other clients.
const ClientLibraryVersion = "0.1.0"

// Channels used by the RTI itself.
const (
	ControlChannel     = "rti/control"
	ChannelsChannel    = "rti/channels"
	ClientsChannel     = "rti/clients"
	MeasuresChannel    = "rti/measures"
	MeasurementChannel = "rti/measurement"
	CommandsChannel    = "rti/commands"
)

// ErrConnectNotCalled is returned when sending something before Connect was called.
var ErrConnectNotCalled = errors.New("rti: Connect was not called")

// ConnectionPhase of a Client's session. Application traffic is only live while Connected.
type ConnectionPhase int

const (
	Disconnected ConnectionPhase = iota - 1
	Connecting
	Authenticating
	Connected
)

func (p ConnectionPhase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("unknown phase %d", int(p))
	}
}

// Client is a session to an RTI broker.
//
// A Client is not safe for concurrent use. Its owner must call Poll repeatedly, e.g., by PollForever, and all
// callbacks are executed synchronously within Poll. Callbacks might use the Client again.
type Client struct {
	opts      Options
	transport transport.Transport
	logger    *log.Entry
	metrics   *metrics
	now       func() time.Time

	// session
	conn              transport.Conn
	connOpened        bool
	connFailed        bool
	phase             ConnectionPhase
	cid               uint64
	handshakeCid      uint64
	connectCalled     bool
	connectAttempted  bool
	shouldBeConnected bool
	firstConnected    bool
	connectTime       time.Time
	lastReconnect     time.Time
	lastPing          time.Time
	lastCollect       time.Time
	brokerVersion     string

	// callbacks
	nextHandle            Handle
	connectListeners      listeners[func()]
	firstConnectListeners listeners[func()]
	disconnectListeners   listeners[func()]
	errorListeners        listeners[func(tag, message string)]
	eventListeners        map[string]*listeners[func(data string)]
	subscriptions         map[string]*listeners[MessageCallback]
	subscriptionChannels  map[Handle]string
	rpcCallbacks          map[uint64]func(string)
	rpcErrorCallbacks     map[uint64]func(string)

	// directories
	state         proto.RuntimeState
	usedChannels  map[string]*proto.ChannelUse
	knownChannels map[string]*proto.Channel
	knownClients  map[string]proto.Client
	usedMeasures  map[string]proto.Measure
	knownMeasures map[string]proto.Measure

	pending   map[pendingKey]*pendingAggregation
	timeScale float64
}

// NewClient creates a Client for the given Options. The Client does not connect before Connect is called.
func NewClient(opts Options) (*Client, error) {
	return newClient(opts, osEnvironment())
}

func newClient(opts Options, env environment) (*Client, error) {
	opts, err := opts.resolve(env)
	if err != nil {
		return nil, err
	}

	m, err := newMetrics(opts.ClientID, opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics failed: %w", err)
	}

	c := &Client{
		opts:      opts,
		transport: opts.Transport,
		logger: log.WithFields(log.Fields{
			"client":      opts.ClientID,
			"application": opts.Application,
		}),
		metrics: m,
		now:     time.Now,

		phase: Disconnected,

		eventListeners:       make(map[string]*listeners[func(string)]),
		subscriptions:        make(map[string]*listeners[MessageCallback]),
		subscriptionChannels: make(map[Handle]string),
		rpcCallbacks:         make(map[uint64]func(string)),
		rpcErrorCallbacks:    make(map[uint64]func(string)),

		state:         proto.Unknown,
		usedChannels:  make(map[string]*proto.ChannelUse),
		knownChannels: make(map[string]*proto.Channel),
		knownClients:  make(map[string]proto.Client),
		usedMeasures:  make(map[string]proto.Measure),
		knownMeasures: make(map[string]proto.Measure),

		pending:   make(map[pendingKey]*pendingAggregation),
		timeScale: 1,
	}

	if c.transport == nil {
		c.transport = transport.NewWebSocket(opts.URL, opts.InsecureSkipVerify)
	}
	c.transport.SetHandler(sessionHandler{c})

	SubscribeMessage(c, ClientsChannel, c.onClients, true)
	SubscribeMessage(c, ChannelsChannel, c.onChannels, true)
	SubscribeMessage(c, MeasuresChannel, c.onMeasures, true)

	c.logger.WithFields(log.Fields{
		"url":        opts.URL,
		"federation": opts.Federation,
	}).Debug("Created RTI client")

	return c, nil
}

// ClientID of this Client.
func (c *Client) ClientID() string {
	return c.opts.ClientID
}

// Application name of this Client.
func (c *Client) Application() string {
	return c.opts.Application
}

// URL of the broker.
func (c *Client) URL() string {
	return c.opts.URL
}

// Federation of this Client, empty if none.
func (c *Client) Federation() string {
	return c.opts.Federation
}

// Host this Client runs on.
func (c *Client) Host() string {
	return c.opts.Host
}

// Station of this Client.
func (c *Client) Station() string {
	return c.opts.Station
}

// Phase of the current session.
func (c *Client) Phase() ConnectionPhase {
	return c.phase
}

// IsConnected reports whether the session is authenticated and application traffic is live.
func (c *Client) IsConnected() bool {
	return c.phase == Connected
}

// BrokerVersion as announced by the broker, empty if unknown.
func (c *Client) BrokerVersion() string {
	return c.brokerVersion
}

// OwnChannelPrefix addresses channels to this Client.
func (c *Client) OwnChannelPrefix() string {
	return "@" + c.opts.ClientID + ":"
}

func (c *Client) newHandle() Handle {
	c.nextHandle++
	return c.nextHandle
}

// OnConnected registers a callback for each established session.
func (c *Client) OnConnected(fn func()) Handle {
	h := c.newHandle()
	c.connectListeners.add(h, fn)
	return h
}

// OnFirstConnect registers a callback for the first established session of this Client. It is called before the
// OnConnected callbacks.
func (c *Client) OnFirstConnect(fn func()) Handle {
	h := c.newHandle()
	c.firstConnectListeners.add(h, fn)
	return h
}

// OnDisconnected registers a callback for each lost or closed session.
func (c *Client) OnDisconnected(fn func()) Handle {
	h := c.newHandle()
	c.disconnectListeners.add(h, fn)
	return h
}

// OnError registers a callback for errors. The tag is either a channel name or a category like "connection",
// "rpc" or "fail".
func (c *Client) OnError(fn func(tag, message string)) Handle {
	h := c.newHandle()
	c.errorListeners.add(h, fn)
	return h
}

// OnEvent registers a callback for events pushed by the broker without correlation id, e.g., custom broker
// notifications. Control events starting with '#' are never delivered.
func (c *Client) OnEvent(event string, fn func(data string)) Handle {
	h := c.newHandle()
	l, ok := c.eventListeners[event]
	if !ok {
		l = new(listeners[func(string)])
		c.eventListeners[event] = l
	}
	l.add(h, fn)
	return h
}

// Off removes a callback registered by OnConnected, OnFirstConnect, OnDisconnected, OnError or OnEvent.
// Subscriptions are removed by UnsubscribeHandle.
func (c *Client) Off(h Handle) {
	if c.connectListeners.remove(h) || c.firstConnectListeners.remove(h) ||
		c.disconnectListeners.remove(h) || c.errorListeners.remove(h) {
		return
	}

	for event, l := range c.eventListeners {
		if l.remove(h) {
			if l.len() == 0 {
				delete(c.eventListeners, event)
			}
			return
		}
	}
}

func (c *Client) notifyConnected(first bool) {
	if first {
		for _, fn := range c.firstConnectListeners.snapshot() {
			fn()
		}
	}
	for _, fn := range c.connectListeners.snapshot() {
		fn()
	}
}

func (c *Client) notifyDisconnected() {
	for _, fn := range c.disconnectListeners.snapshot() {
		fn()
	}
}

func (c *Client) notifyError(tag, message string) {
	c.logger.WithFields(log.Fields{
		"tag":   tag,
		"error": message,
	}).Warn("RTI client error")

	for _, fn := range c.errorListeners.snapshot() {
		fn(tag, message)
	}
}
