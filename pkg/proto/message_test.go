// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package proto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dtn7/cboring"
)

func TestEncodeDecode(t *testing.T) {
	msgs := []struct {
		in  Message
		out Message
	}{
		{&Clients{RequestClients: true}, new(Clients)},
		{&Clients{Client: &Client{
			ID:           "foo",
			Application:  "Go",
			State:        Running,
			Host:         "host",
			Capabilities: []string{"runtime", "log"},
		}}, new(Clients)},
		{&Channels{ChannelUsage: &ChannelUsage{
			ClientID: "foo",
			Usage: []ChannelUse{
				{Channel: Channel{Name: "a", DataType: "Measurement", Ephemeral: true}, Publish: true},
				{Channel: Channel{Name: "b"}, Subscribe: true},
			},
		}}, new(Channels)},
		{&Measures{Measure: &Measure{ID: "speed", Interval: 1.5, PerEntity: true}}, new(Measures)},
		{&Measurement{MeasureID: "speed", ClientID: "foo", Value: 42}, new(Measurement)},
		{&Measurement{MeasureID: "speed", ClientID: "foo", Window: &Window{
			Count: 3, Mean: 42, Min: 40, Max: 44, Duration: 1.1,
		}}, new(Measurement)},
		{&Commands{Execute: &ExecuteCommand{
			Name:          "reset",
			TransactionID: "0815",
			Arguments:     map[string]string{"b": "2", "a": "1"},
		}}, new(Commands)},
		{&RuntimeControl{Error: &RuntimeError{ClientID: "foo", State: Loading, Message: "oof"}}, new(RuntimeControl)},
	}

	for _, msg := range msgs {
		t.Run(msg.in.TypeName(), func(t *testing.T) {
			content, err := Encode(msg.in)
			if err != nil {
				t.Fatal(err)
			}

			if err := Decode(content, msg.out); err != nil {
				t.Fatal(err)
			} else if !reflect.DeepEqual(msg.in, msg.out) {
				t.Fatalf("expected %v, got %v", msg.in, msg.out)
			}
		})
	}
}

func TestEncodeEmptyOneof(t *testing.T) {
	if _, err := Encode(&Clients{}); err == nil {
		t.Fatal("encoding an empty Clients message did not error")
	}
}

func TestDecodeUnknownTypeCode(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := cboring.WriteArrayLength(1, buf); err != nil {
		t.Fatal(err)
	} else if err := cboring.WriteUInt(23, buf); err != nil {
		t.Fatal(err)
	}

	var m Measures
	if err := cboring.Unmarshal(&m, buf); !errors.Is(err, ErrUnknownTypeCode) {
		t.Fatalf("expected %v, got %v", ErrUnknownTypeCode, err)
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	var c Channels
	if err := Decode("not base64!", &c); err == nil {
		t.Fatal("decoding invalid base64 did not error")
	} else if !strings.Contains(err.Error(), "base64") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// oversizedContent encodes m, whose last field is an empty array or map, and replaces that field's header with one
// claiming 2^40 elements which never follow.
func oversizedContent(t *testing.T, m Message, isMap bool) string {
	buf := new(bytes.Buffer)
	if err := cboring.Marshal(m, buf); err != nil {
		t.Fatal(err)
	}
	buf.Truncate(buf.Len() - 1)

	var err error
	if isMap {
		err = cboring.WriteMapPairLength(1<<40, buf)
	} else {
		err = cboring.WriteArrayLength(1<<40, buf)
	}
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeOversizedLength(t *testing.T) {
	tests := []struct {
		in    Message
		out   Message
		isMap bool
	}{
		{&Channels{ChannelUsage: &ChannelUsage{ClientID: "foo"}}, new(Channels), false},
		{&Clients{Client: &Client{ID: "foo", Application: "Go"}}, new(Clients), false},
		{&Commands{Execute: &ExecuteCommand{Name: "reset", TransactionID: "0815"}}, new(Commands), true},
	}

	for _, test := range tests {
		t.Run(test.in.TypeName(), func(t *testing.T) {
			content := oversizedContent(t, test.in, test.isMap)
			if err := Decode(content, test.out); err == nil {
				t.Fatalf("decoding %s with an oversized length did not error", test.in.TypeName())
			}
		})
	}
}

func TestChannelMerge(t *testing.T) {
	c := Channel{Name: "foo"}

	c.Merge(Channel{Name: "foo", DataType: "Clients", Ephemeral: true})
	if c.DataType != "Clients" || !c.Ephemeral {
		t.Fatalf("merge did not fill in fields: %v", c)
	}

	c.Merge(Channel{Name: "foo", DataType: "Other", State: true})
	if c.DataType != "Clients" {
		t.Fatalf("merge overwrote data type: %v", c)
	} else if !c.Ephemeral || !c.State {
		t.Fatalf("merge cleared or missed flags: %v", c)
	}
}

func TestMeasureCheckValid(t *testing.T) {
	tests := []struct {
		m     Measure
		valid bool
	}{
		{Measure{ID: "foo"}, true},
		{Measure{ID: "foo", Interval: 1}, true},
		{Measure{}, false},
		{Measure{ID: "foo", Interval: -1}, false},
	}

	for _, test := range tests {
		if err := test.m.CheckValid(); (err == nil) != test.valid {
			t.Fatalf("%v: expected valid = %t, got %v", test.m, test.valid, err)
		}
	}
}

func TestRuntimeStateString(t *testing.T) {
	for _, rs := range []RuntimeState{Unknown, Running, PlaybackStopped} {
		if parsed, err := ParseRuntimeState(rs.String()); err != nil {
			t.Fatal(err)
		} else if parsed != rs {
			t.Fatalf("expected %v, got %v", rs, parsed)
		}
	}

	if _, err := ParseRuntimeState("FOO"); err == nil {
		t.Fatal("parsing an unknown state did not error")
	}
}
