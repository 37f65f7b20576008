// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import "github.com/inhumate/rti-go/pkg/proto"

// StatusResponse describes a JSON response for /status.
type StatusResponse struct {
	ClientID      string `json:"client_id"`
	Application   string `json:"application"`
	URL           string `json:"url"`
	Federation    string `json:"federation,omitempty"`
	Phase         string `json:"phase"`
	Connected     bool   `json:"connected"`
	BrokerVersion string `json:"broker_version,omitempty"`
	State         string `json:"state"`
	Taken         string `json:"taken"`
}

// ClientResponse describes a known client in JSON responses for /clients.
type ClientResponse struct {
	ID                   string   `json:"id"`
	Application          string   `json:"application"`
	State                string   `json:"state"`
	ApplicationVersion   string   `json:"application_version,omitempty"`
	EngineVersion        string   `json:"engine_version,omitempty"`
	IntegrationVersion   string   `json:"integration_version,omitempty"`
	ClientLibraryVersion string   `json:"client_library_version,omitempty"`
	Host                 string   `json:"host,omitempty"`
	Station              string   `json:"station,omitempty"`
	User                 string   `json:"user,omitempty"`
	Participant          string   `json:"participant,omitempty"`
	Role                 string   `json:"role,omitempty"`
	FullName             string   `json:"full_name,omitempty"`
	Capabilities         []string `json:"capabilities,omitempty"`
}

func newClientResponse(c proto.Client) ClientResponse {
	return ClientResponse{
		ID:                   c.ID,
		Application:          c.Application,
		State:                c.State.String(),
		ApplicationVersion:   c.ApplicationVersion,
		EngineVersion:        c.EngineVersion,
		IntegrationVersion:   c.IntegrationVersion,
		ClientLibraryVersion: c.ClientLibraryVersion,
		Host:                 c.Host,
		Station:              c.Station,
		User:                 c.User,
		Participant:          c.Participant,
		Role:                 c.Role,
		FullName:             c.FullName,
		Capabilities:         c.Capabilities,
	}
}

// ChannelResponse describes a known channel in JSON responses for /channels.
type ChannelResponse struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type,omitempty"`
	Ephemeral    bool   `json:"ephemeral"`
	State        bool   `json:"state"`
	FirstFieldID bool   `json:"first_field_id"`
	Used         bool   `json:"used"`
	Publish      bool   `json:"publish"`
	Subscribe    bool   `json:"subscribe"`
}

// MeasureResponse describes a known measure in JSON responses for /measures.
type MeasureResponse struct {
	ID          string  `json:"id"`
	Application string  `json:"application,omitempty"`
	Title       string  `json:"title,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	Interval    float64 `json:"interval"`
	PerEntity   bool    `json:"per_entity"`
}

func newMeasureResponse(m proto.Measure) MeasureResponse {
	return MeasureResponse{
		ID:          m.ID,
		Application: m.Application,
		Title:       m.Title,
		Unit:        m.Unit,
		Channel:     m.Channel,
		Interval:    m.Interval,
		PerEntity:   m.PerEntity,
	}
}

// ErrorResponse describes a JSON response for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
