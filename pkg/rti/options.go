// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/transport"
)

const (
	// DefaultURL of the RTI broker, used if neither Options.URL nor RTI_URL is set.
	DefaultURL = "ws://localhost:8000/"

	// DefaultApplication is the application name for unnamed clients.
	DefaultApplication = "Go"

	clientIDLength  = 36
	clientIDCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Options to create a Client. Unset fields are resolved from the environment or filled with defaults.
type Options struct {
	// Application name of this client.
	Application string

	// URL of the broker. A URL without scheme gets ws:// for local hosts and wss:// for others.
	// Falls back to RTI_URL and DefaultURL.
	URL string

	// Federation isolates a group of clients on a shared broker. Slashes are replaced by underscores.
	// Falls back to RTI_FEDERATION.
	Federation string

	// Secret is sent during authentication. RTI_SECRET takes precedence, if set.
	Secret string

	User     string
	Password string

	// ClientID identifies this client. A random one is generated if unset.
	ClientID string

	// Host defaults to RTI_HOST, COMPUTERNAME, HOSTNAME or the hostname without its domain.
	Host string
	// Station defaults to RTI_STATION.
	Station string

	Participant string
	Role        string
	FullName    string

	ApplicationVersion string
	EngineVersion      string
	IntegrationVersion string
	Capabilities       []string

	// Incognito clients never publish their presence, their measures or their channel usage.
	Incognito bool

	// InsecureSkipVerify disables the certificate verification for wss:// connections.
	InsecureSkipVerify bool

	// Transport to the broker. A WebSocket transport is created if unset.
	Transport transport.Transport

	// Registerer for the client's metrics. Metrics are not registered anywhere if unset.
	Registerer prometheus.Registerer
}

// environment is the process environment used to resolve Options.
type environment struct {
	getenv   func(string) string
	hostname func() (string, error)
	seed     int64
}

func osEnvironment() environment {
	return environment{
		getenv:   os.Getenv,
		hostname: os.Hostname,
		seed:     time.Now().UnixNano(),
	}
}

func (env environment) firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := env.getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// resolve returns a copy of these Options with all defaults applied.
func (opts Options) resolve(env environment) (Options, error) {
	if opts.Application == "" {
		opts.Application = DefaultApplication
	}

	if opts.URL == "" {
		opts.URL = env.firstEnv("RTI_URL")
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	opts.URL = completeURL(opts.URL)

	if opts.Federation == "" {
		opts.Federation = env.firstEnv("RTI_FEDERATION")
	}
	opts.Federation = strings.ReplaceAll(opts.Federation, "/", "_")

	if secret := env.firstEnv("RTI_SECRET"); secret != "" {
		opts.Secret = secret
	}

	if opts.ClientID == "" {
		opts.ClientID = randomClientID(rand.New(rand.NewSource(env.seed)))
	}

	if opts.Host == "" {
		opts.Host = env.firstEnv("RTI_HOST", "COMPUTERNAME", "HOSTNAME")
	}
	if opts.Host == "" {
		if hostname, err := env.hostname(); err == nil {
			opts.Host, _, _ = strings.Cut(hostname, ".")
		}
	}

	if opts.Station == "" {
		opts.Station = env.firstEnv("RTI_STATION")
	}

	opts.Capabilities = append([]string(nil), opts.Capabilities...)

	return opts, opts.validate()
}

func (opts Options) validate() (errs error) {
	if u, err := url.Parse(opts.URL); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid URL: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = multierror.Append(errs, fmt.Errorf("URL %q has neither a ws nor a wss scheme", opts.URL))
	} else if u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("URL %q has no host", opts.URL))
	}

	if strings.HasPrefix(opts.ClientID, "@") || strings.Contains(opts.ClientID, ":") {
		errs = multierror.Append(errs, fmt.Errorf("client id %q must neither start with '@' nor contain ':'", opts.ClientID))
	}

	for _, capability := range opts.Capabilities {
		if capability == "" {
			errs = multierror.Append(errs, fmt.Errorf("empty capability"))
			break
		}
	}

	return
}

// completeURL prefixes a URL without WebSocket scheme, using plain WebSockets for local hosts only.
func completeURL(rawUrl string) string {
	switch {
	case strings.HasPrefix(rawUrl, "ws://"), strings.HasPrefix(rawUrl, "wss://"):
		return rawUrl
	case strings.HasPrefix(rawUrl, "localhost"), strings.HasPrefix(rawUrl, "127."):
		return "ws://" + rawUrl
	default:
		return "wss://" + rawUrl
	}
}

func randomClientID(r *rand.Rand) string {
	var sb strings.Builder
	sb.Grow(clientIDLength)
	for i := 0; i < clientIDLength; i++ {
		sb.WriteByte(clientIDCharset[r.Intn(len(clientIDCharset))])
	}
	return sb.String()
}

// runtimeClient is the presence record of these Options.
func (opts Options) runtimeClient(state proto.RuntimeState) proto.Client {
	return proto.Client{
		ID:                   opts.ClientID,
		Application:          opts.Application,
		State:                state,
		ApplicationVersion:   opts.ApplicationVersion,
		EngineVersion:        opts.EngineVersion,
		IntegrationVersion:   opts.IntegrationVersion,
		ClientLibraryVersion: ClientLibraryVersion,
		Host:                 opts.Host,
		Station:              opts.Station,
		User:                 opts.User,
		Participant:          opts.Participant,
		Role:                 opts.Role,
		FullName:             opts.FullName,
		Capabilities:         append([]string(nil), opts.Capabilities...),
	}
}
