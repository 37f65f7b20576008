// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/inhumate/rti-go/pkg/proto"
)

func TestCommandRequestChannel(t *testing.T) {
	tests := []struct {
		req      CommandRequest
		expected string
	}{
		{CommandRequest{Name: "reset"}, "rti/commands"},
		{CommandRequest{Name: "reset", EntityID: "ship1"}, "rti/commands/ship1"},
		{CommandRequest{Name: "reset", ClientID: "sim"}, "@sim:rti/commands"},
		{CommandRequest{Name: "reset", ClientID: "sim", EntityID: "ship1"}, "@sim:rti/commands/ship1"},
	}

	for _, test := range tests {
		if channel := test.req.channel(); channel != test.expected {
			t.Fatalf("%v: expected %s, got %s", test.req, test.expected, channel)
		}
	}
}

func decodeCommands(t *testing.T, contents []string) (msgs []proto.Commands) {
	for _, content := range contents {
		var msg proto.Commands
		if err := proto.Decode(content, &msg); err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
	}
	return
}

func TestExecuteCommandResponse(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	var responses []proto.CommandResponse
	tid, err := c.ExecuteCommand(CommandRequest{
		Name:      "load",
		Arguments: map[string]string{"scenario": "harbor"},
		ClientID:  "sim",
	}, func(resp proto.CommandResponse) { responses = append(responses, resp) })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(tid); err != nil {
		t.Fatalf("transaction id %q is no UUID: %v", tid, err)
	}

	sent := tr.conn().takeSent()
	if subs := subscribed(t, sent); len(subs) != 1 || subs[0] != "@sim:rti/commands" {
		t.Fatalf("unexpected subscriptions %v", subs)
	}

	msgs := decodeCommands(t, published(t, sent, "@sim:rti/commands"))
	if len(msgs) != 1 || msgs[0].Execute == nil {
		t.Fatalf("expected one command, got %v", msgs)
	}
	if exec := msgs[0].Execute; exec.Name != "load" || exec.TransactionID != tid || exec.Arguments["scenario"] != "harbor" {
		t.Fatalf("unexpected command %v", exec)
	}

	// The own command, a foreign response and the matching one.
	tr.publish(t, "@sim:rti/commands", published(t, sent, "@sim:rti/commands")[0])
	tr.publishMessage(t, "@sim:rti/commands", &proto.Commands{Response: &proto.CommandResponse{TransactionID: "other"}})
	tr.publishMessage(t, "@sim:rti/commands", &proto.Commands{Response: &proto.CommandResponse{TransactionID: tid, Message: "loaded"}})
	tr.publishMessage(t, "@sim:rti/commands", &proto.Commands{Response: &proto.CommandResponse{TransactionID: tid, Message: "again"}})
	pollAll(c)

	if len(responses) != 1 || responses[0].Message != "loaded" || responses[0].Failed {
		t.Fatalf("unexpected responses %v", responses)
	}
	if c.Subscribed("@sim:rti/commands") {
		t.Fatal("temporary subscription was not removed")
	}
}

func TestExecuteCommandWithoutResponse(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	tid, err := c.ExecuteCommand(CommandRequest{Name: "pause"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tid != "" {
		t.Fatalf("expected no transaction id, got %s", tid)
	}

	sent := tr.conn().takeSent()
	if subs := subscribed(t, sent); len(subs) != 0 {
		t.Fatalf("unexpected subscriptions %v", subs)
	}
	if msgs := decodeCommands(t, published(t, sent, CommandsChannel)); len(msgs) != 1 || msgs[0].Execute.Name != "pause" {
		t.Fatalf("unexpected commands %v", msgs)
	}

	c2, _, _ := newTestClient(t, Options{})
	if _, err := c2.ExecuteCommand(CommandRequest{Name: "pause"}, nil); err != ErrConnectNotCalled {
		t.Fatalf("expected %v, got %v", ErrConnectNotCalled, err)
	}
}

func TestHandleCommands(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	var executed []string
	handles := c.HandleCommands(func(cmd proto.ExecuteCommand) (string, error) {
		executed = append(executed, cmd.Name)
		if cmd.Name == "fail" {
			return "", errors.New("cannot comply")
		}
		return "done", nil
	})
	if len(handles) != 2 {
		t.Fatalf("expected two handles, got %v", handles)
	}

	sent := tr.conn().takeSent()
	if subs := subscribed(t, sent); len(subs) != 2 || subs[0] != CommandsChannel || subs[1] != "@test-client:rti/commands" {
		t.Fatalf("unexpected subscriptions %v", subs)
	}

	tr.publishMessage(t, CommandsChannel, &proto.Commands{Execute: &proto.ExecuteCommand{Name: "pause"}})
	tr.publishMessage(t, CommandsChannel, &proto.Commands{Execute: &proto.ExecuteCommand{Name: "play", TransactionID: "t1"}})
	tr.publishMessage(t, "@test-client:rti/commands", &proto.Commands{Execute: &proto.ExecuteCommand{Name: "fail", TransactionID: "t2"}})
	pollAll(c)

	if len(executed) != 3 {
		t.Fatalf("expected three executed commands, got %v", executed)
	}

	sent = tr.conn().takeSent()

	broadcast := decodeCommands(t, published(t, sent, CommandsChannel))
	if len(broadcast) != 1 || broadcast[0].Response == nil {
		t.Fatalf("expected one response, got %v", broadcast)
	}
	if resp := broadcast[0].Response; resp.TransactionID != "t1" || resp.Failed || resp.Message != "done" {
		t.Fatalf("unexpected response %v", resp)
	}

	addressed := decodeCommands(t, published(t, sent, "@test-client:rti/commands"))
	if len(addressed) != 1 || addressed[0].Response == nil {
		t.Fatalf("expected one response, got %v", addressed)
	}
	if resp := addressed[0].Response; resp.TransactionID != "t2" || !resp.Failed || resp.Message != "cannot comply" {
		t.Fatalf("unexpected response %v", resp)
	}

	for _, h := range handles {
		c.UnsubscribeHandle(h)
	}
	if c.Subscribed(CommandsChannel) {
		t.Fatal("commands are still subscribed")
	}
}
