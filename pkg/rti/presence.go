// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

// State of this Client's runtime.
func (c *Client) State() proto.RuntimeState {
	return c.state
}

// SetState changes the runtime state. The presence record is only republished for an actual change.
func (c *Client) SetState(state proto.RuntimeState) {
	if state == c.state {
		return
	}

	c.logger.WithFields(log.Fields{
		"old state": c.state,
		"new state": state,
	}).Debug("Changing runtime state")

	c.state = state
	c.publishClient()
}

// Participant returns the participant, role and full name of this Client.
func (c *Client) Participant() (participant, role, fullName string) {
	return c.opts.Participant, c.opts.Role, c.opts.FullName
}

// SetParticipant changes the participant fields. The presence record is only republished for an actual change.
func (c *Client) SetParticipant(participant, role, fullName string) {
	if participant == c.opts.Participant && role == c.opts.Role && fullName == c.opts.FullName {
		return
	}

	c.opts.Participant = participant
	c.opts.Role = role
	c.opts.FullName = fullName
	c.publishClient()
}

// SetStation changes the station of this Client and republishes its presence record on a change.
func (c *Client) SetStation(station string) {
	if station == c.opts.Station {
		return
	}

	c.opts.Station = station
	c.publishClient()
}

// Self returns the presence record of this Client.
func (c *Client) Self() proto.Client {
	return c.opts.runtimeClient(c.state)
}

func (c *Client) publishClient() {
	if c.opts.Incognito {
		return
	}
	self := c.Self()
	c.publishInternal(ClientsChannel, &proto.Clients{Client: &self})
}

// RequestClients asks all clients to publish their presence records.
func (c *Client) RequestClients() error {
	return c.PublishMessage(ClientsChannel, &proto.Clients{RequestClients: true}, true)
}

// PublishHeartbeat while connected.
func (c *Client) PublishHeartbeat() {
	c.publishInternal(ClientsChannel, &proto.Clients{Heartbeat: &proto.ClientHeartbeat{
		ClientID: c.opts.ClientID,
	}})
}

// PublishProgress of a long running operation, e.g., loading a scenario, while connected.
func (c *Client) PublishProgress(progress uint64) {
	c.publishInternal(ClientsChannel, &proto.Clients{Progress: &proto.ClientProgress{
		ClientID: c.opts.ClientID,
		Progress: progress,
	}})
}

// PublishValue to be displayed next to this Client while connected.
func (c *Client) PublishValue(value string, highlight, isError bool) {
	c.publishInternal(ClientsChannel, &proto.Clients{Value: &proto.ClientValue{
		ClientID:  c.opts.ClientID,
		Value:     value,
		Highlight: highlight,
		Error:     isError,
	}})
}

// PublishError reports a runtime error within the current state while connected.
func (c *Client) PublishError(message string) {
	c.PublishErrorInState(message, c.state)
}

// PublishErrorInState reports a runtime error within the given state while connected.
func (c *Client) PublishErrorInState(message string, state proto.RuntimeState) {
	c.publishInternal(ControlChannel, &proto.RuntimeControl{Error: &proto.RuntimeError{
		ClientID: c.opts.ClientID,
		State:    state,
		Message:  message,
	}})
}

// KnownClients returns the latest presence records of all clients, ordered by id.
func (c *Client) KnownClients() []proto.Client {
	clients := make([]proto.Client, 0, len(c.knownClients))
	for _, client := range c.knownClients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients
}

// KnownClient returns the latest presence record of a client, if known.
func (c *Client) KnownClient(id string) (proto.Client, bool) {
	client, ok := c.knownClients[id]
	return client, ok
}

// ClientsByApplication returns all known clients of an application, ordered by id.
func (c *Client) ClientsByApplication(application string) (clients []proto.Client) {
	for _, client := range c.KnownClients() {
		if client.Application == application {
			clients = append(clients, client)
		}
	}
	return
}

// addresses reports whether a participant registration targets this Client.
func (c *Client) addresses(reg *proto.RegisterParticipant) bool {
	return (reg.ClientID == "" || reg.ClientID == c.opts.ClientID) &&
		(reg.Host == "" || reg.Host == c.opts.Host) &&
		(reg.Station == "" || reg.Station == c.opts.Station)
}

func (c *Client) onClients(_ string, msg *proto.Clients) {
	switch {
	case msg.RequestClients:
		c.publishClient()

	case msg.Client != nil:
		c.knownClients[msg.Client.ID] = *msg.Client

	case msg.RegisterParticipant != nil:
		reg := msg.RegisterParticipant
		if !c.addresses(reg) {
			return
		}

		c.logger.WithFields(log.Fields{
			"participant": reg.Participant,
			"role":        reg.Role,
			"full name":   reg.FullName,
		}).Debug("Received participant registration")
		c.SetParticipant(reg.Participant, reg.Role, reg.FullName)
	}
}
