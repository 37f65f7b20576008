// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"fmt"
	"io"
	"sort"

	"github.com/dtn7/cboring"
)

// RuntimeError is reported by a client which failed, e.g., to load a scenario.
type RuntimeError struct {
	ClientID string
	State    RuntimeState
	Message  string
}

func (re *RuntimeError) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(re.ClientID, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(re.State), w); err != nil {
		return err
	}
	return cboring.WriteTextString(re.Message, w)
}

func (re *RuntimeError) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "RuntimeError", 3); err != nil {
		return err
	}
	if err := readTextStrings(r, &re.ClientID); err != nil {
		return err
	}
	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		re.State = RuntimeState(n)
	}
	return readTextStrings(r, &re.Message)
}

const runtimeControlErrorCode uint64 = 0

// RuntimeControl is the message type of the rti/control channel.
type RuntimeControl struct {
	Error *RuntimeError
}

func (rc *RuntimeControl) TypeName() string {
	return "RuntimeControl"
}

func (rc *RuntimeControl) MarshalCbor(w io.Writer) error {
	if rc.Error == nil {
		return fmt.Errorf("RuntimeControl: no content")
	}
	return marshalOneof(runtimeControlErrorCode, rc.Error, w)
}

func (rc *RuntimeControl) UnmarshalCbor(r io.Reader) error {
	code, hasContent, err := unmarshalOneofHeader(r)
	if err != nil {
		return err
	} else if code != runtimeControlErrorCode || !hasContent {
		return fmt.Errorf("RuntimeControl: %w %d", ErrUnknownTypeCode, code)
	}

	rc.Error = new(RuntimeError)
	return cboring.Unmarshal(rc.Error, r)
}

// ExecuteCommand requests a client to run a named command.
type ExecuteCommand struct {
	Name          string
	TransactionID string
	Arguments     map[string]string
}

func (ec *ExecuteCommand) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := writeTextStrings(w, ec.Name, ec.TransactionID); err != nil {
		return err
	}

	keys := make([]string, 0, len(ec.Arguments))
	for k := range ec.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := cboring.WriteMapPairLength(uint64(len(keys)), w); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writeTextStrings(w, k, ec.Arguments[k]); err != nil {
			return err
		}
	}
	return nil
}

func (ec *ExecuteCommand) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "ExecuteCommand", 3); err != nil {
		return err
	}
	if err := readTextStrings(r, &ec.Name, &ec.TransactionID); err != nil {
		return err
	}

	n, err := cboring.ReadMapPairLength(r)
	if err != nil {
		return err
	}
	ec.Arguments = make(map[string]string)
	for i := uint64(0); i < n; i++ {
		var k, v string
		if err := readTextStrings(r, &k, &v); err != nil {
			return err
		}
		ec.Arguments[k] = v
	}
	return nil
}

// CommandResponse answers an ExecuteCommand with the same TransactionID.
type CommandResponse struct {
	TransactionID string
	Failed        bool
	Message       string
}

func (cr *CommandResponse) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(cr.TransactionID, w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(cr.Failed, w); err != nil {
		return err
	}
	return cboring.WriteTextString(cr.Message, w)
}

func (cr *CommandResponse) UnmarshalCbor(r io.Reader) error {
	if err := expectArrayLength(r, "CommandResponse", 3); err != nil {
		return err
	}
	if err := readTextStrings(r, &cr.TransactionID); err != nil {
		return err
	}
	if err := readBooleans(r, &cr.Failed); err != nil {
		return err
	}
	return readTextStrings(r, &cr.Message)
}

const (
	commandsExecuteCode  uint64 = 0
	commandsResponseCode uint64 = 1
)

// Commands is the message type of the rti/commands channel and its addressed variants.
type Commands struct {
	Execute  *ExecuteCommand
	Response *CommandResponse
}

func (c *Commands) TypeName() string {
	return "Commands"
}

func (c *Commands) MarshalCbor(w io.Writer) error {
	switch {
	case c.Execute != nil:
		return marshalOneof(commandsExecuteCode, c.Execute, w)
	case c.Response != nil:
		return marshalOneof(commandsResponseCode, c.Response, w)
	default:
		return fmt.Errorf("Commands: no content")
	}
}

func (c *Commands) UnmarshalCbor(r io.Reader) error {
	code, hasContent, err := unmarshalOneofHeader(r)
	if err != nil {
		return err
	}

	*c = Commands{}
	switch {
	case code == commandsExecuteCode && hasContent:
		c.Execute = new(ExecuteCommand)
		return cboring.Unmarshal(c.Execute, r)
	case code == commandsResponseCode && hasContent:
		c.Response = new(CommandResponse)
		return cboring.Unmarshal(c.Response, r)
	default:
		return fmt.Errorf("Commands: %w %d", ErrUnknownTypeCode, code)
	}
}
