// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"errors"
	"testing"

	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/rti"
	"github.com/inhumate/rti-go/pkg/transport"
)

// offlineTransport never connects.
type offlineTransport struct{}

func (offlineTransport) SetHandler(transport.Handler) {}

func (offlineTransport) Open(string) (transport.Conn, error) {
	return nil, errors.New("offline")
}

func (offlineTransport) PollOne() int {
	return 0
}

func TestTakeSnapshot(t *testing.T) {
	c, err := rti.NewClient(rti.Options{
		Application: "inspect-test",
		URL:         "ws://localhost:8000/",
		ClientID:    "inspector",
		Transport:   offlineTransport{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterMeasure(proto.Measure{ID: "speed", Interval: 1}); err != nil {
		t.Fatal(err)
	}
	c.RegisterChannel(proto.Channel{Name: "foo"})

	snap := TakeSnapshot(c)
	if snap.ClientID != "inspector" || snap.Application != "inspect-test" || snap.Phase != rti.Disconnected {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	if len(snap.Measures) != 1 || snap.Measures[0].ID != "speed" {
		t.Fatalf("unexpected measures %v", snap.Measures)
	}

	channels := snap.channels()
	if len(channels) != 4 {
		t.Fatalf("expected four channels, got %v", channels)
	}
	for _, ch := range channels {
		if !ch.Used {
			t.Fatalf("channel %s is not used", ch.Name)
		}
	}
}
