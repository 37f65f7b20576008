// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Invoke a method on the broker. The onSuccess callback is called at most once with the reply; errors are reported
// to the OnError callbacks tagged "rpc".
//
// Calls never time out. A caller needing a deadline has to implement it on its own.
func (c *Client) Invoke(method, data string, onSuccess func(reply string)) error {
	return c.InvokeWithError(method, data, onSuccess, nil)
}

// InvokeWithError is like Invoke, but errors are passed to onError instead of the OnError callbacks.
// At most one of both callbacks is called. A call still pending when the session is re-established fails.
func (c *Client) InvokeWithError(method, data string, onSuccess, onError func(string)) error {
	if !c.connectAttempted {
		return ErrConnectNotCalled
	}

	cid := c.nextCid()
	if onSuccess != nil {
		c.rpcCallbacks[cid] = onSuccess
	} else {
		delete(c.rpcCallbacks, cid)
	}
	if onError != nil {
		c.rpcErrorCallbacks[cid] = onError
	} else {
		delete(c.rpcErrorCallbacks, cid)
	}
	c.updatePendingCalls()

	env, err := newEnvelope(method, data, cid)
	if err != nil {
		c.notifyError("rpc", err.Error())
		return nil
	}
	return c.sendEnvelope(env)
}

// Transmit an event without expecting a reply.
func (c *Client) Transmit(event, data string) error {
	if !c.connectAttempted {
		return ErrConnectNotCalled
	}

	env, err := newEnvelope(event, data, 0)
	if err != nil {
		c.notifyError("rpc", err.Error())
		return nil
	}
	return c.sendEnvelope(env)
}

// resolve the call of a reply, exactly once.
func (c *Client) resolve(env envelope) {
	onSuccess := c.rpcCallbacks[env.Rid]
	onError := c.rpcErrorCallbacks[env.Rid]
	delete(c.rpcCallbacks, env.Rid)
	delete(c.rpcErrorCallbacks, env.Rid)
	c.updatePendingCalls()

	logger := c.logger.WithFields(log.Fields{
		"rid":   env.Rid,
		"error": len(env.Error) > 0,
	})

	if len(env.Error) > 0 {
		message := textOf(env.Error)
		if onError != nil {
			logger.Debug("Resolving call with error")
			onError(message)
		} else {
			c.notifyError("rpc", message)
		}
		return
	}

	if onSuccess != nil {
		logger.Debug("Resolving call")
		onSuccess(textOf(env.Data))
	}
}

// abandonCalls fails all pending calls. Their correlation ids are reused by the next session.
func (c *Client) abandonCalls(reason string) {
	callbacks, errorCallbacks := c.rpcCallbacks, c.rpcErrorCallbacks
	if len(callbacks) == 0 && len(errorCallbacks) == 0 {
		return
	}

	c.rpcCallbacks = make(map[uint64]func(string))
	c.rpcErrorCallbacks = make(map[uint64]func(string))
	c.updatePendingCalls()

	cids := make([]uint64, 0, len(callbacks)+len(errorCallbacks))
	for cid := range callbacks {
		cids = append(cids, cid)
	}
	for cid := range errorCallbacks {
		if _, ok := callbacks[cid]; !ok {
			cids = append(cids, cid)
		}
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })

	c.logger.WithFields(log.Fields{
		"calls":  len(cids),
		"reason": reason,
	}).Debug("Abandoning pending calls")

	for _, cid := range cids {
		message := fmt.Sprintf("call %d abandoned: %s", cid, reason)
		if onError, ok := errorCallbacks[cid]; ok {
			onError(message)
		} else {
			c.notifyError("rpc", message)
		}
	}
}

func (c *Client) updatePendingCalls() {
	pending := len(c.rpcCallbacks)
	for cid := range c.rpcErrorCallbacks {
		if _, ok := c.rpcCallbacks[cid]; !ok {
			pending++
		}
	}
	c.metrics.pendingRpcCalls.Set(float64(pending))
}
