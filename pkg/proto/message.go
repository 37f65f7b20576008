// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// ErrUnknownTypeCode is returned when a oneof message carries an unsupported type code.
var ErrUnknownTypeCode = errors.New("unknown type code")

// Message is a typed payload which might be published on a channel.
type Message interface {
	// TypeName is used as the data type of a channel carrying this kind of Message.
	TypeName() string

	cboring.CborMarshaler
}

// Encode a Message to its base64 representation as used within a publish envelope.
func Encode(m Message) (string, error) {
	buf := new(bytes.Buffer)
	if err := cboring.Marshal(m, buf); err != nil {
		return "", fmt.Errorf("marshalling %s failed: %w", m.TypeName(), err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode the base64 content of a publish envelope into the given Message.
func Decode(content string, m Message) error {
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return fmt.Errorf("decoding base64 content failed: %w", err)
	}

	if err := cboring.Unmarshal(m, bytes.NewBuffer(data)); err != nil {
		return fmt.Errorf("unmarshalling %s failed: %w", m.TypeName(), err)
	}

	return nil
}

// marshalOneof writes a type code, optionally followed by its content.
// A nil content results in an array of length one, used for plain requests.
func marshalOneof(code uint64, content cboring.CborMarshaler, w io.Writer) error {
	var arrLen uint64 = 1
	if content != nil {
		arrLen = 2
	}

	if err := cboring.WriteArrayLength(arrLen, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(code, w); err != nil {
		return err
	}

	if content != nil {
		return cboring.Marshal(content, w)
	}
	return nil
}

// unmarshalOneofHeader reads the array header and the type code written by marshalOneof.
// The returned boolean indicates whether some content follows.
func unmarshalOneofHeader(r io.Reader) (code uint64, hasContent bool, err error) {
	if n, arrErr := cboring.ReadArrayLength(r); arrErr != nil {
		err = arrErr
		return
	} else if n != 1 && n != 2 {
		err = fmt.Errorf("expected array of one or two elements, got %d", n)
		return
	} else {
		hasContent = n == 2
	}

	code, err = cboring.ReadUInt(r)
	return
}

func writeTextStrings(w io.Writer, strs ...string) error {
	for _, s := range strs {
		if err := cboring.WriteTextString(s, w); err != nil {
			return err
		}
	}
	return nil
}

func readTextStrings(r io.Reader, strs ...*string) error {
	for _, s := range strs {
		if v, err := cboring.ReadTextString(r); err != nil {
			return err
		} else {
			*s = v
		}
	}
	return nil
}

func writeBooleans(w io.Writer, bs ...bool) error {
	for _, b := range bs {
		if err := cboring.WriteBoolean(b, w); err != nil {
			return err
		}
	}
	return nil
}

func readBooleans(r io.Reader, bs ...*bool) error {
	for _, b := range bs {
		if v, err := cboring.ReadBoolean(r); err != nil {
			return err
		} else {
			*b = v
		}
	}
	return nil
}

func writeFloats(w io.Writer, fs ...float64) error {
	for _, f := range fs {
		if err := cboring.WriteFloat64(f, w); err != nil {
			return err
		}
	}
	return nil
}

func readFloats(r io.Reader, fs ...*float64) error {
	for _, f := range fs {
		if v, err := cboring.ReadFloat64(r); err != nil {
			return err
		} else {
			*f = v
		}
	}
	return nil
}

func expectArrayLength(r io.Reader, name string, expected uint64) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != expected {
		return fmt.Errorf("%s: expected array of %d elements, got %d", name, expected, n)
	}
	return nil
}
