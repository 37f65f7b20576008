// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// RuntimeState of a client, e.g., of a simulator running a scenario.
type RuntimeState uint64

const (
	Unknown RuntimeState = iota
	Initial
	Loading
	Ready
	Running
	Playback
	Paused
	PlaybackPaused
	End
	PlaybackEnd
	Stopping
	Stopped
	PlaybackStopped
)

var runtimeStateNames = []string{
	"UNKNOWN", "INITIAL", "LOADING", "READY", "RUNNING", "PLAYBACK", "PAUSED", "PLAYBACK_PAUSED",
	"END", "PLAYBACK_END", "STOPPING", "STOPPED", "PLAYBACK_STOPPED",
}

func (rs RuntimeState) String() string {
	if int(rs) < len(runtimeStateNames) {
		return runtimeStateNames[rs]
	}
	return fmt.Sprintf("RuntimeState(%d)", uint64(rs))
}

// ParseRuntimeState returns the RuntimeState for its String representation.
func ParseRuntimeState(s string) (RuntimeState, error) {
	for i, name := range runtimeStateNames {
		if name == s {
			return RuntimeState(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown runtime state %q", s)
}

// Client is the presence record of a client.
type Client struct {
	ID                   string
	Application          string
	State                RuntimeState
	ApplicationVersion   string
	EngineVersion        string
	IntegrationVersion   string
	ClientLibraryVersion string
	Host                 string
	Station              string
	User                 string
	Participant          string
	Role                 string
	FullName             string
	Capabilities         []string
}

func (c *Client) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(14, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, c.ID, c.Application); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(c.State), w); err != nil {
		return err
	}
	if err := writeTextStrings(w,
		c.ApplicationVersion, c.EngineVersion, c.IntegrationVersion, c.ClientLibraryVersion,
		c.Host, c.Station, c.User, c.Participant, c.Role, c.FullName); err != nil {
		return err
	}

	if err := cboring.WriteArrayLength(uint64(len(c.Capabilities)), w); err != nil {
		return err
	}
	return writeTextStrings(w, c.Capabilities...)
}

func (c *Client) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "Client", 14); err != nil {
		return err
	}
	if err := readTextStrings(r, &c.ID, &c.Application); err != nil {
		return err
	}
	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		c.State = RuntimeState(n)
	}
	if err := readTextStrings(r,
		&c.ApplicationVersion, &c.EngineVersion, &c.IntegrationVersion, &c.ClientLibraryVersion,
		&c.Host, &c.Station, &c.User, &c.Participant, &c.Role, &c.FullName); err != nil {
		return err
	}

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	c.Capabilities = nil
	for i := uint64(0); i < n; i++ {
		var capability string
		if err := readTextStrings(r, &capability); err != nil {
			return fmt.Errorf("Client: capability %d: %w", i, err)
		}
		c.Capabilities = append(c.Capabilities, capability)
	}
	return nil
}

// RegisterParticipant asks matching clients to adopt a participant, role and full name.
// Empty ClientID, Host or Station fields match every client.
type RegisterParticipant struct {
	ClientID    string
	Host        string
	Station     string
	Participant string
	Role        string
	FullName    string
}

func (rp *RegisterParticipant) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}
	return writeTextStrings(w, rp.ClientID, rp.Host, rp.Station, rp.Participant, rp.Role, rp.FullName)
}

func (rp *RegisterParticipant) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "RegisterParticipant", 6); err != nil {
		return err
	}
	return readTextStrings(r, &rp.ClientID, &rp.Host, &rp.Station, &rp.Participant, &rp.Role, &rp.FullName)
}

// ClientHeartbeat signals that a client is still alive.
type ClientHeartbeat struct {
	ClientID string
}

func (ch *ClientHeartbeat) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(ch.ClientID, w)
}

func (ch *ClientHeartbeat) UnmarshalCbor(r io.Reader) (err error) {
	ch.ClientID, err = cboring.ReadTextString(r)
	return
}

// ClientProgress reports a client's loading progress in percent.
type ClientProgress struct {
	ClientID string
	Progress uint64
}

func (cp *ClientProgress) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(cp.ClientID, w); err != nil {
		return err
	}
	return cboring.WriteUInt(cp.Progress, w)
}

func (cp *ClientProgress) UnmarshalCbor(r io.Reader) (err error) {
	if err = expectArrayLength(r, "ClientProgress", 2); err != nil {
		return
	}
	if cp.ClientID, err = cboring.ReadTextString(r); err != nil {
		return
	}
	cp.Progress, err = cboring.ReadUInt(r)
	return
}

// ClientValue is some human readable value a client wants to show, e.g., in a dashboard.
type ClientValue struct {
	ClientID  string
	Value     string
	Highlight bool
	Error     bool
}

func (cv *ClientValue) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, cv.ClientID, cv.Value); err != nil {
		return err
	}
	return writeBooleans(w, cv.Highlight, cv.Error)
}

func (cv *ClientValue) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "ClientValue", 4); err != nil {
		return err
	}
	if err := readTextStrings(r, &cv.ClientID, &cv.Value); err != nil {
		return err
	}
	return readBooleans(r, &cv.Highlight, &cv.Error)
}

const (
	clientsRequestCode   uint64 = 0
	clientsClientCode    uint64 = 1
	clientsRegisterCode  uint64 = 2
	clientsHeartbeatCode uint64 = 3
	clientsProgressCode  uint64 = 4
	clientsValueCode     uint64 = 5
)

// Clients is the message type of the rti/clients channel. Exactly one of its fields should be set.
type Clients struct {
	RequestClients      bool
	Client              *Client
	RegisterParticipant *RegisterParticipant
	Heartbeat           *ClientHeartbeat
	Progress            *ClientProgress
	Value               *ClientValue
}

func (c *Clients) TypeName() string {
	return "Clients"
}

func (c *Clients) MarshalCbor(w io.Writer) error {
	switch {
	case c.Client != nil:
		return marshalOneof(clientsClientCode, c.Client, w)
	case c.RegisterParticipant != nil:
		return marshalOneof(clientsRegisterCode, c.RegisterParticipant, w)
	case c.Heartbeat != nil:
		return marshalOneof(clientsHeartbeatCode, c.Heartbeat, w)
	case c.Progress != nil:
		return marshalOneof(clientsProgressCode, c.Progress, w)
	case c.Value != nil:
		return marshalOneof(clientsValueCode, c.Value, w)
	case c.RequestClients:
		return marshalOneof(clientsRequestCode, nil, w)
	default:
		return fmt.Errorf("Clients: no content")
	}
}

func (c *Clients) UnmarshalCbor(r io.Reader) error {
	code, hasContent, err := unmarshalOneofHeader(r)
	if err != nil {
		return err
	}

	*c = Clients{}
	if code == clientsRequestCode && !hasContent {
		c.RequestClients = true
		return nil
	} else if !hasContent {
		return fmt.Errorf("Clients: type code %d without content", code)
	}

	switch code {
	case clientsClientCode:
		c.Client = new(Client)
		return cboring.Unmarshal(c.Client, r)
	case clientsRegisterCode:
		c.RegisterParticipant = new(RegisterParticipant)
		return cboring.Unmarshal(c.RegisterParticipant, r)
	case clientsHeartbeatCode:
		c.Heartbeat = new(ClientHeartbeat)
		return cboring.Unmarshal(c.Heartbeat, r)
	case clientsProgressCode:
		c.Progress = new(ClientProgress)
		return cboring.Unmarshal(c.Progress, r)
	case clientsValueCode:
		c.Value = new(ClientValue)
		return cboring.Unmarshal(c.Value, r)
	default:
		return fmt.Errorf("Clients: %w %d", ErrUnknownTypeCode, code)
	}
}
