// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"time"

	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/rti"
)

// Snapshot of a Client's directories at some point in time.
type Snapshot struct {
	Taken time.Time

	ClientID      string
	Application   string
	URL           string
	Federation    string
	Phase         rti.ConnectionPhase
	BrokerVersion string
	State         proto.RuntimeState

	Clients      []proto.Client
	Channels     []proto.Channel
	UsedChannels []proto.ChannelUse
	Measures     []proto.Measure
}

// TakeSnapshot of a Client. This must be called from the goroutine polling the Client.
func TakeSnapshot(c *rti.Client) Snapshot {
	return Snapshot{
		Taken: time.Now(),

		ClientID:      c.ClientID(),
		Application:   c.Application(),
		URL:           c.URL(),
		Federation:    c.Federation(),
		Phase:         c.Phase(),
		BrokerVersion: c.BrokerVersion(),
		State:         c.State(),

		Clients:      c.KnownClients(),
		Channels:     c.KnownChannels(),
		UsedChannels: c.UsedChannels(),
		Measures:     c.KnownMeasures(),
	}
}

func (snap Snapshot) status() StatusResponse {
	taken := ""
	if !snap.Taken.IsZero() {
		taken = snap.Taken.UTC().Format(time.RFC3339)
	}

	return StatusResponse{
		ClientID:      snap.ClientID,
		Application:   snap.Application,
		URL:           snap.URL,
		Federation:    snap.Federation,
		Phase:         snap.Phase.String(),
		Connected:     snap.Phase == rti.Connected,
		BrokerVersion: snap.BrokerVersion,
		State:         snap.State.String(),
		Taken:         taken,
	}
}

func (snap Snapshot) channels() []ChannelResponse {
	uses := make(map[string]proto.ChannelUse, len(snap.UsedChannels))
	for _, use := range snap.UsedChannels {
		uses[use.Channel.Name] = use
	}

	resps := make([]ChannelResponse, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		use, used := uses[ch.Name]
		resps = append(resps, ChannelResponse{
			Name:         ch.Name,
			DataType:     ch.DataType,
			Ephemeral:    ch.Ephemeral,
			State:        ch.State,
			FirstFieldID: ch.FirstFieldID,
			Used:         used,
			Publish:      use.Publish,
			Subscribe:    use.Subscribe,
		})
	}
	return resps
}
