// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport describes the bidirectional text frame transport used by an RTI client.
//
// A Transport hands out a new Conn for each connection attempt. All events of all of its Conns are queued inside the
// Transport and are only delivered to the Handler when PollOne is called. Thus, the Handler is always executed on the
// goroutine polling the Transport.
package transport

import "errors"

// ErrNotOpen is returned when sending on a Conn which is not (yet or anymore) open.
var ErrNotOpen = errors.New("transport: connection is not open")

// Handler receives the events of a Transport's connections while polling.
type Handler interface {
	// OnOpen is called after a Conn was established.
	OnOpen(c Conn)

	// OnText is called for each received text frame.
	OnText(c Conn, text string)

	// OnError is called for failures, e.g., if dialing failed or reading errored. The Conn is not open afterwards.
	OnError(c Conn, err error)
}

// Conn is one connection of a Transport.
type Conn interface {
	// Send a text frame.
	Send(text string) error

	// Close the connection gracefully with a reason.
	Close(reason string) error

	// IsOpen reports if the connection is established and was not closed.
	IsOpen() bool
}

// Transport creates Conns and delivers their events.
type Transport interface {
	// SetHandler for all future events.
	SetHandler(h Handler)

	// Open starts a new connection to the URL. An error is only returned if the connection cannot be started at
	// all, e.g., for a malformed URL. Asynchronous failures are reported to the Handler.
	Open(url string) (Conn, error)

	// PollOne delivers at most one pending event to the Handler without blocking and returns the amount of
	// delivered events.
	PollOne() int
}
