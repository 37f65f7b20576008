// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

// Handle identifies a registered callback, e.g., a subscription or a connection listener.
// Handles are unique for a Client and are never reused.
type Handle uint64

type listener[F any] struct {
	handle Handle
	fn     F
}

// listeners is an ordered set of callbacks, delivered in their registration order.
type listeners[F any] struct {
	entries []listener[F]
}

func (l *listeners[F]) add(h Handle, fn F) {
	l.entries = append(l.entries, listener[F]{handle: h, fn: fn})
}

// remove the callback of a Handle and report whether it was present.
func (l *listeners[F]) remove(h Handle) bool {
	for i, e := range l.entries {
		if e.handle == h {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *listeners[F]) len() int {
	return len(l.entries)
}

func (l *listeners[F]) handles() []Handle {
	hs := make([]Handle, len(l.entries))
	for i, e := range l.entries {
		hs[i] = e.handle
	}
	return hs
}

// snapshot of the current callbacks. Callbacks might register or remove other callbacks while being iterated.
func (l *listeners[F]) snapshot() []F {
	fns := make([]F, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}
