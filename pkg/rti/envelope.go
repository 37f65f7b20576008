// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"bytes"
	"encoding/json"
)

// envelope is the JSON control frame exchanged with the broker.
type envelope struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Cid   uint64          `json:"cid,omitempty"`
	Rid   uint64          `json:"rid,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// publishData is the payload of a #publish event in both directions.
type publishData struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscribeData struct {
	Channel string `json:"channel"`
}

type authToken struct {
	ClientID             string `json:"clientId"`
	ClientLibraryVersion string `json:"clientLibraryVersion"`
	Application          string `json:"application"`
	Federation           string `json:"federation,omitempty"`
	Secret               string `json:"secret,omitempty"`
	User                 string `json:"user,omitempty"`
	Password             string `json:"password,omitempty"`
}

// newEnvelope with data marshalled to JSON. A nil data is omitted.
func newEnvelope(event string, data interface{}, cid uint64) (envelope, error) {
	env := envelope{Event: event, Cid: cid}
	if data == nil {
		return env, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return env, err
	}
	env.Data = raw
	return env, nil
}

func (env envelope) String() string {
	data, _ := json.Marshal(env)
	return string(data)
}

// textOf a JSON value. Strings are unquoted, everything else is returned as its compact JSON text.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	buf := new(bytes.Buffer)
	if err := json.Compact(buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
