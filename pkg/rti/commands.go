// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

// CommandRequest names a command to be executed by other clients.
type CommandRequest struct {
	Name      string
	Arguments map[string]string

	// ClientID addresses the command to a single client, if set.
	ClientID string
	// EntityID addresses the command to a single entity, if set.
	EntityID string
	// TransactionID correlates the responses. It is generated if a response is awaited.
	TransactionID string
}

func (req CommandRequest) channel() string {
	channel := CommandsChannel
	if req.EntityID != "" {
		channel += "/" + req.EntityID
	}
	if req.ClientID != "" {
		channel = "@" + req.ClientID + ":" + channel
	}
	return channel
}

// ExecuteCommand publishes a command and returns its transaction id. If onResponse is set, the first response of the
// same transaction is passed to it, after which the temporary subscription is removed.
func (c *Client) ExecuteCommand(req CommandRequest, onResponse func(proto.CommandResponse)) (string, error) {
	if !c.connectAttempted {
		return "", ErrConnectNotCalled
	}

	if onResponse != nil && req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}
	channel := req.channel()

	if onResponse != nil {
		var h Handle
		h = SubscribeMessage(c, channel, func(_ string, msg *proto.Commands) {
			if msg.Response == nil || msg.Response.TransactionID != req.TransactionID {
				return
			}
			c.UnsubscribeHandle(h)
			onResponse(*msg.Response)
		}, false)
	}

	c.logger.WithFields(log.Fields{
		"command":     req.Name,
		"channel":     channel,
		"transaction": req.TransactionID,
	}).Debug("Executing command")

	return req.TransactionID, c.PublishMessage(channel, &proto.Commands{Execute: &proto.ExecuteCommand{
		Name:          req.Name,
		TransactionID: req.TransactionID,
		Arguments:     req.Arguments,
	}}, true)
}

// CommandHandler executes a command and returns a message for its response.
type CommandHandler func(cmd proto.ExecuteCommand) (string, error)

// HandleCommands subscribes to commands for all clients and commands addressed to this Client. Commands carrying a
// transaction id are answered on the channel they were received on.
func (c *Client) HandleCommands(fn CommandHandler) []Handle {
	handle := func(channel string, msg *proto.Commands) {
		if msg.Execute == nil {
			return
		}

		message, err := fn(*msg.Execute)
		if msg.Execute.TransactionID == "" {
			return
		}

		resp := &proto.CommandResponse{TransactionID: msg.Execute.TransactionID, Message: message}
		if err != nil {
			resp.Failed = true
			resp.Message = err.Error()
		}
		if err := c.PublishMessage(channel, &proto.Commands{Response: resp}, false); err != nil {
			c.logger.WithError(err).WithField("command", msg.Execute.Name).Debug("Responding to command errored")
		}
	}

	return []Handle{
		SubscribeMessage(c, CommandsChannel, handle, true),
		SubscribeMessage(c, c.OwnChannelPrefix()+CommandsChannel, handle, false),
	}
}
