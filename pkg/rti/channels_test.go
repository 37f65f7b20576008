// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"reflect"
	"testing"

	"github.com/inhumate/rti-go/pkg/proto"
)

func TestChannelDiscoveryMerge(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	tr.publishMessage(t, ChannelsChannel, &proto.Channels{Channel: &proto.Channel{Name: "foo", Ephemeral: true}})
	tr.publishMessage(t, ChannelsChannel, &proto.Channels{ChannelUsage: &proto.ChannelUsage{
		ClientID: "other",
		Usage: []proto.ChannelUse{
			{Channel: proto.Channel{Name: "foo", DataType: "Position"}, Publish: true},
			{Channel: proto.Channel{Name: "@other:private"}, Subscribe: true},
		},
	}})
	tr.publishMessage(t, ChannelsChannel, &proto.Channels{Channel: &proto.Channel{Name: "foo", DataType: "Other", State: true}})
	pollAll(c)

	expected := proto.Channel{Name: "foo", DataType: "Position", Ephemeral: true, State: true}
	if ch, ok := c.KnownChannel("foo"); !ok || !reflect.DeepEqual(ch, expected) {
		t.Fatalf("expected %v, got %v", expected, ch)
	}
	if _, ok := c.KnownChannel("@other:private"); ok {
		t.Fatal("private channel was discovered")
	}

	// Discovered channels are not used by this client.
	for _, use := range c.UsedChannels() {
		if use.Channel.Name == "foo" {
			t.Fatal("discovered channel is used")
		}
	}
}

func TestRegisterChannelReplaces(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	c.RegisterChannel(proto.Channel{Name: "foo", DataType: "A", Ephemeral: true})
	c.RegisterChannel(proto.Channel{Name: "foo", DataType: "B"})

	expected := proto.Channel{Name: "foo", DataType: "B"}
	if ch, _ := c.KnownChannel("foo"); !reflect.DeepEqual(ch, expected) {
		t.Fatalf("expected %v, got %v", expected, ch)
	}

	if n := len(published(t, tr.conn().takeSent(), ChannelsChannel)); n != 2 {
		t.Fatalf("expected two announcements, got %d", n)
	}

	var found bool
	for _, use := range c.UsedChannels() {
		if use.Channel.Name == "foo" {
			found = true
			if !reflect.DeepEqual(use.Channel, expected) || use.Publish || use.Subscribe {
				t.Fatalf("unexpected use %v", use)
			}
		}
	}
	if !found {
		t.Fatal("registered channel is not used")
	}

	c.RegisterChannel(proto.Channel{Name: "@me:private"})
	if _, ok := c.KnownChannel("@me:private"); ok {
		t.Fatal("private channel was registered")
	}

	c.UnregisterChannel("foo")
	if _, ok := c.KnownChannel("foo"); ok {
		t.Fatal("channel is still known")
	}
}

func TestChannelUsageRequest(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	c.Subscribe("foo", func(string, string) {}, true)
	if err := c.Publish("foo", "bar", true); err != nil {
		t.Fatal(err)
	}
	if err := c.Publish("baz", "bar", true); err != nil {
		t.Fatal(err)
	}
	tr.conn().takeSent()

	tr.publishMessage(t, ChannelsChannel, &proto.Channels{RequestChannelUsage: true})
	pollAll(c)

	contents := published(t, tr.conn().takeSent(), ChannelsChannel)
	if len(contents) != 1 {
		t.Fatalf("expected one channel usage, got %d", len(contents))
	}

	var msg proto.Channels
	if err := proto.Decode(contents[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ChannelUsage == nil || msg.ChannelUsage.ClientID != "test-client" {
		t.Fatalf("unexpected message %v", msg)
	}

	uses := make(map[string]proto.ChannelUse)
	for _, use := range msg.ChannelUsage.Usage {
		uses[use.Channel.Name] = use
	}
	if foo := uses["foo"]; !foo.Publish || !foo.Subscribe {
		t.Fatalf("unexpected use of foo %v", foo)
	}
	if baz := uses["baz"]; !baz.Publish || baz.Subscribe {
		t.Fatalf("unexpected use of baz %v", baz)
	}
	if clients := uses[ClientsChannel]; !clients.Subscribe || clients.Channel.DataType != "Clients" {
		t.Fatalf("unexpected use of %s %v", ClientsChannel, clients)
	}

	if err := c.RequestChannels(); err != nil {
		t.Fatal(err)
	}
	contents = published(t, tr.conn().takeSent(), ChannelsChannel)
	if err := proto.Decode(contents[0], &msg); err != nil {
		t.Fatal(err)
	} else if !msg.RequestChannelUsage {
		t.Fatalf("expected a request, got %v", msg)
	}
}

func TestKnownChannelsOrdered(t *testing.T) {
	c, _, _ := newTestClient(t, Options{})

	var names []string
	for _, ch := range c.KnownChannels() {
		names = append(names, ch.Name)
	}

	expected := []string{ChannelsChannel, ClientsChannel, MeasuresChannel}
	if !reflect.DeepEqual(names, expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
}
