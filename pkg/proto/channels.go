// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// Channel describes a named pub/sub topic.
type Channel struct {
	Name         string
	DataType     string
	Ephemeral    bool
	State        bool
	FirstFieldID bool
}

// Merge another description of the same Channel into this one. The data type is only filled in if unset and the
// boolean flags are only ever raised, never cleared.
func (c *Channel) Merge(other Channel) {
	if other.DataType != "" && c.DataType == "" {
		c.DataType = other.DataType
	}
	if other.Ephemeral {
		c.Ephemeral = true
	}
	if other.State {
		c.State = true
	}
	if other.FirstFieldID {
		c.FirstFieldID = true
	}
}

func (c *Channel) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, c.Name, c.DataType); err != nil {
		return err
	}
	return writeBooleans(w, c.Ephemeral, c.State, c.FirstFieldID)
}

func (c *Channel) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "Channel", 5); err != nil {
		return err
	}
	if err := readTextStrings(r, &c.Name, &c.DataType); err != nil {
		return err
	}
	return readBooleans(r, &c.Ephemeral, &c.State, &c.FirstFieldID)
}

// ChannelUse pairs a Channel with a client's own publish and subscribe intent.
type ChannelUse struct {
	Channel   Channel
	Publish   bool
	Subscribe bool
}

func (cu *ChannelUse) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.Marshal(&cu.Channel, w); err != nil {
		return err
	}
	return writeBooleans(w, cu.Publish, cu.Subscribe)
}

func (cu *ChannelUse) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "ChannelUse", 3); err != nil {
		return err
	}
	if err := cboring.Unmarshal(&cu.Channel, r); err != nil {
		return err
	}
	return readBooleans(r, &cu.Publish, &cu.Subscribe)
}

// ChannelUsage lists all channels used by one client.
type ChannelUsage struct {
	ClientID string
	Usage    []ChannelUse
}

func (cu *ChannelUsage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(cu.ClientID, w); err != nil {
		return err
	}

	if err := cboring.WriteArrayLength(uint64(len(cu.Usage)), w); err != nil {
		return err
	}
	for i := range cu.Usage {
		if err := cboring.Marshal(&cu.Usage[i], w); err != nil {
			return err
		}
	}
	return nil
}

func (cu *ChannelUsage) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "ChannelUsage", 2); err != nil {
		return err
	}
	if err := readTextStrings(r, &cu.ClientID); err != nil {
		return err
	}

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}

	// Grow with the decoded elements, n is not trusted.
	cu.Usage = nil
	for i := uint64(0); i < n; i++ {
		var use ChannelUse
		if err := cboring.Unmarshal(&use, r); err != nil {
			return fmt.Errorf("ChannelUsage: usage %d: %w", i, err)
		}
		cu.Usage = append(cu.Usage, use)
	}
	return nil
}

const (
	channelsRequestUsageCode uint64 = 0
	channelsUsageCode        uint64 = 1
	channelsChannelCode      uint64 = 2
)

// Channels is the message type of the rti/channels channel. Exactly one of its fields should be set.
type Channels struct {
	RequestChannelUsage bool
	ChannelUsage        *ChannelUsage
	Channel             *Channel
}

func (c *Channels) TypeName() string {
	return "Channels"
}

func (c *Channels) MarshalCbor(w io.Writer) error {
	switch {
	case c.ChannelUsage != nil:
		return marshalOneof(channelsUsageCode, c.ChannelUsage, w)
	case c.Channel != nil:
		return marshalOneof(channelsChannelCode, c.Channel, w)
	case c.RequestChannelUsage:
		return marshalOneof(channelsRequestUsageCode, nil, w)
	default:
		return fmt.Errorf("Channels: no content")
	}
}

func (c *Channels) UnmarshalCbor(r io.Reader) error {
	code, hasContent, err := unmarshalOneofHeader(r)
	if err != nil {
		return err
	}

	*c = Channels{}
	switch {
	case code == channelsRequestUsageCode && !hasContent:
		c.RequestChannelUsage = true
		return nil
	case code == channelsUsageCode && hasContent:
		c.ChannelUsage = new(ChannelUsage)
		return cboring.Unmarshal(c.ChannelUsage, r)
	case code == channelsChannelCode && hasContent:
		c.Channel = new(Channel)
		return cboring.Unmarshal(c.Channel, r)
	default:
		return fmt.Errorf("Channels: %w %d", ErrUnknownTypeCode, code)
	}
}
