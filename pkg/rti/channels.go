// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

// bookkept reports whether a channel takes part in the channel discovery. Private channels do not.
func bookkept(channel string) bool {
	return channel != "" && !strings.HasPrefix(channel, "@")
}

func (c *Client) registerChannelUsage(channel string, publish bool, dataType string) {
	if !bookkept(channel) {
		return
	}

	known, isKnown := c.knownChannels[channel]
	use, isUsed := c.usedChannels[channel]
	if !isUsed {
		use = &proto.ChannelUse{Channel: proto.Channel{Name: channel, DataType: dataType}}
		if isKnown {
			use.Channel = *known
		}
		c.usedChannels[channel] = use
	}

	if publish {
		use.Publish = true
	} else {
		use.Subscribe = true
	}

	if !isKnown {
		c.RegisterChannel(proto.Channel{Name: channel, DataType: dataType})
	}
}

// RegisterChannel describes a channel used by this Client. An already known description of this channel is
// replaced, not merged. The new description is announced while connected.
func (c *Client) RegisterChannel(channel proto.Channel) {
	if !bookkept(channel.Name) {
		return
	}

	known := channel
	c.knownChannels[channel.Name] = &known

	if use, ok := c.usedChannels[channel.Name]; ok {
		use.Channel = channel
	} else {
		c.usedChannels[channel.Name] = &proto.ChannelUse{Channel: channel}
	}

	if !c.opts.Incognito {
		c.publishInternal(ChannelsChannel, &proto.Channels{Channel: &channel})
	}
}

// UnregisterChannel forgets a channel, both as known and as used.
func (c *Client) UnregisterChannel(name string) {
	delete(c.knownChannels, name)
	delete(c.usedChannels, name)
}

func (c *Client) discoverChannel(channel proto.Channel) {
	if !bookkept(channel.Name) {
		return
	}

	if known, ok := c.knownChannels[channel.Name]; ok {
		known.Merge(channel)
	} else {
		discovered := channel
		c.knownChannels[channel.Name] = &discovered
	}
}

// RequestChannels asks all clients to announce their channel usage.
func (c *Client) RequestChannels() error {
	return c.PublishMessage(ChannelsChannel, &proto.Channels{RequestChannelUsage: true}, true)
}

// KnownChannels returns all channels learned from any client, including this one, ordered by name.
func (c *Client) KnownChannels() []proto.Channel {
	channels := make([]proto.Channel, 0, len(c.knownChannels))
	for _, channel := range c.knownChannels {
		channels = append(channels, *channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

// KnownChannel returns the description of a channel, if known.
func (c *Client) KnownChannel(name string) (proto.Channel, bool) {
	if channel, ok := c.knownChannels[name]; ok {
		return *channel, true
	}
	return proto.Channel{}, false
}

// UsedChannels returns the channels this Client published on or subscribed to, ordered by name.
func (c *Client) UsedChannels() []proto.ChannelUse {
	uses := make([]proto.ChannelUse, 0, len(c.usedChannels))
	for _, use := range c.usedChannels {
		uses = append(uses, *use)
	}
	sort.Slice(uses, func(i, j int) bool { return uses[i].Channel.Name < uses[j].Channel.Name })
	return uses
}

func (c *Client) onChannels(_ string, msg *proto.Channels) {
	switch {
	case msg.RequestChannelUsage:
		if c.opts.Incognito {
			return
		}
		c.publishInternal(ChannelsChannel, &proto.Channels{ChannelUsage: &proto.ChannelUsage{
			ClientID: c.opts.ClientID,
			Usage:    c.UsedChannels(),
		}})

	case msg.ChannelUsage != nil:
		c.logger.WithFields(log.Fields{
			"from":     msg.ChannelUsage.ClientID,
			"channels": len(msg.ChannelUsage.Usage),
		}).Debug("Received channel usage")

		for _, use := range msg.ChannelUsage.Usage {
			c.discoverChannel(use.Channel)
		}

	case msg.Channel != nil:
		c.discoverChannel(*msg.Channel)
	}
}
