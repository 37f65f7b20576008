// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

const (
	unknownDataType = "unknown"
	jsonDataType    = "json"
)

// MessageCallback receives the content of a message published on a channel.
type MessageCallback func(channel, content string)

func (c *Client) wireChannelName(channel string) string {
	if c.opts.Federation == "" || strings.HasPrefix(channel, "@") {
		return channel
	}
	return "//" + c.opts.Federation + "/" + channel
}

func (c *Client) localChannelName(wire string) string {
	if c.opts.Federation == "" {
		return wire
	}
	return strings.TrimPrefix(wire, "//"+c.opts.Federation+"/")
}

// Publish text content on a channel. If register is set, the channel is recorded as used for publishing.
//
// Only ErrConnectNotCalled is returned. All other failures are reported to the OnError callbacks.
func (c *Client) Publish(channel, content string, register bool) error {
	return c.publish(channel, content, register, unknownDataType)
}

func (c *Client) publish(channel, content string, register bool, dataType string) error {
	if !c.connectAttempted {
		return ErrConnectNotCalled
	}

	if register {
		c.registerChannelUsage(channel, true, dataType)
	}

	env, err := newEnvelope("#publish", publishData{
		Channel: c.wireChannelName(channel),
		Data:    mustQuote(content),
	}, 0)
	if err != nil {
		c.notifyError(channel, err.Error())
		return nil
	}
	return c.sendEnvelope(env)
}

// PublishMessage encodes a typed message and publishes it on a channel. The channel's data type is the message's
// type name.
func (c *Client) PublishMessage(channel string, m proto.Message, register bool) error {
	if !c.connectAttempted {
		return ErrConnectNotCalled
	}

	content, err := proto.Encode(m)
	if err != nil {
		c.notifyError(channel, fmt.Sprintf("failed to serialize: %v", err))
		return nil
	}
	return c.publish(channel, content, register, m.TypeName())
}

// PublishJSON publishes the JSON representation of v on a channel.
func (c *Client) PublishJSON(channel string, v interface{}, register bool) error {
	if !c.connectAttempted {
		return ErrConnectNotCalled
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.notifyError(channel, fmt.Sprintf("failed to serialize: %v", err))
		return nil
	}
	return c.publish(channel, string(data), register, jsonDataType)
}

// publishInternal sends the RTI's own messages, which are only meaningful while connected.
func (c *Client) publishInternal(channel string, m proto.Message) {
	if c.phase != Connected {
		return
	}
	if err := c.PublishMessage(channel, m, true); err != nil {
		c.logger.WithError(err).WithField("channel", channel).Debug("Publishing errored")
	}
}

func mustQuote(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

// Subscribe to a channel. Multiple callbacks of the same channel are called in their registration order.
// If register is set, the channel is recorded as used for subscribing.
func (c *Client) Subscribe(channel string, fn MessageCallback, register bool) Handle {
	if c.phase == Connected {
		c.sendSubscribe(channel)
	}

	h := c.newHandle()
	l, ok := c.subscriptions[channel]
	if !ok {
		l = new(listeners[MessageCallback])
		c.subscriptions[channel] = l
	}
	l.add(h, fn)
	c.subscriptionChannels[h] = channel

	if register {
		c.registerChannelUsage(channel, false, unknownDataType)
	}
	return h
}

// SubscribeMessage subscribes to a channel of typed messages. Messages which cannot be decoded are reported to the
// OnError callbacks, tagged with the channel.
func SubscribeMessage[T any, PT interface {
	*T
	proto.Message
}](c *Client, channel string, fn func(channel string, msg PT), register bool) Handle {
	h := c.Subscribe(channel, func(channel, content string) {
		msg := PT(new(T))
		if err := proto.Decode(content, msg); err != nil {
			c.notifyError(channel, err.Error())
			return
		}
		fn(channel, msg)
	}, false)

	if register {
		c.registerChannelUsage(channel, false, PT(new(T)).TypeName())
	}
	return h
}

// SubscribeJSON subscribes to a channel of JSON messages, decoded into values of T.
func SubscribeJSON[T any](c *Client, channel string, fn func(channel string, v T), register bool) Handle {
	h := c.Subscribe(channel, func(channel, content string) {
		var v T
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			c.notifyError(channel, err.Error())
			return
		}
		fn(channel, v)
	}, false)

	if register {
		c.registerChannelUsage(channel, false, jsonDataType)
	}
	return h
}

func (c *Client) sendSubscribe(channel string) {
	env, _ := newEnvelope("#subscribe", subscribeData{Channel: c.wireChannelName(channel)}, c.nextCid())
	_ = c.sendEnvelope(env)
}

// Unsubscribe all callbacks of a channel. The channel is not recorded as used anymore.
func (c *Client) Unsubscribe(channel string) {
	if l, ok := c.subscriptions[channel]; ok {
		for _, h := range l.handles() {
			delete(c.subscriptionChannels, h)
		}
		delete(c.subscriptions, channel)
	}
	delete(c.usedChannels, channel)

	if c.phase == Connected {
		env, _ := newEnvelope("#unsubscribe", c.wireChannelName(channel), c.nextCid())
		_ = c.sendEnvelope(env)
	}
}

// UnsubscribeHandle removes a single subscription callback. Removing the last callback of a channel unsubscribes
// the channel.
func (c *Client) UnsubscribeHandle(h Handle) {
	channel, ok := c.subscriptionChannels[h]
	if !ok {
		return
	}

	l := c.subscriptions[channel]
	if l.len() <= 1 {
		c.Unsubscribe(channel)
		return
	}

	l.remove(h)
	delete(c.subscriptionChannels, h)
}

// Subscribed reports whether a channel has at least one subscription callback.
func (c *Client) Subscribed(channel string) bool {
	l, ok := c.subscriptions[channel]
	return ok && l.len() > 0
}

func (c *Client) dispatch(channel, content string) {
	l, ok := c.subscriptions[channel]
	if !ok {
		c.logger.WithField("channel", channel).Debug("Received message without subscription")
		return
	}

	for _, fn := range l.snapshot() {
		c.deliver(channel, content, fn)
	}
}

// deliver to a single callback. A panicking callback is reported as an error tagged with the channel.
func (c *Client) deliver(channel, content string, fn MessageCallback) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.callbackFaults.Inc()
			c.logger.WithFields(log.Fields{
				"channel": channel,
				"panic":   r,
			}).Debug("Subscription callback panicked")
			c.notifyError(channel, fmt.Sprint(r))
		}
	}()

	fn(channel, content)
}
