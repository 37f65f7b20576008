// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/rti"
)

// agentConfig describes the agent's configuration, either as TOML or as YAML.
type agentConfig struct {
	RTI       rtiConf         `toml:"rti" yaml:"rti"`
	Logging   logConf         `toml:"logging" yaml:"logging"`
	Inspect   inspectConf     `toml:"inspect" yaml:"inspect"`
	Subscribe []subscribeConf `toml:"subscribe" yaml:"subscribe"`
}

// rtiConf describes the RTI-configuration block.
type rtiConf struct {
	Application        string   `toml:"application" yaml:"application"`
	URL                string   `toml:"url" yaml:"url"`
	Federation         string   `toml:"federation" yaml:"federation"`
	Secret             string   `toml:"secret" yaml:"secret"`
	User               string   `toml:"user" yaml:"user"`
	Password           string   `toml:"password" yaml:"password"`
	ClientID           string   `toml:"client-id" yaml:"client-id"`
	Host               string   `toml:"host" yaml:"host"`
	Station            string   `toml:"station" yaml:"station"`
	Participant        string   `toml:"participant" yaml:"participant"`
	Role               string   `toml:"role" yaml:"role"`
	FullName           string   `toml:"full-name" yaml:"full-name"`
	State              string   `toml:"state" yaml:"state"`
	Capabilities       []string `toml:"capabilities" yaml:"capabilities"`
	Incognito          bool     `toml:"incognito" yaml:"incognito"`
	InsecureSkipVerify bool     `toml:"insecure-skip-verify" yaml:"insecure-skip-verify"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string `toml:"level" yaml:"level"`
	ReportCaller bool   `toml:"report-caller" yaml:"report-caller"`
	Format       string `toml:"format" yaml:"format"`
}

// inspectConf describes the introspection HTTP API.
type inspectConf struct {
	Listen  string `toml:"listen" yaml:"listen"`
	Metrics bool   `toml:"metrics" yaml:"metrics"`
}

// subscribeConf describes a channel to be logged by the agent.
type subscribeConf struct {
	Channel  string `toml:"channel" yaml:"channel"`
	Format   string `toml:"format" yaml:"format"`
	Register bool   `toml:"register" yaml:"register"`
}

// presence are the fields of an agent's presence which can be changed at runtime.
type presence struct {
	Participant string
	Role        string
	FullName    string
	Station     string
	State       proto.RuntimeState
}

// loadConfig parses a TOML or YAML configuration file, depending on its extension.
func loadConfig(filename string) (conf agentConfig, err error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml":
		_, err = toml.DecodeFile(filename, &conf)

	case ".yaml", ".yml":
		var f *os.File
		if f, err = os.Open(filename); err != nil {
			return
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&conf)

	default:
		err = fmt.Errorf("unknown configuration format %q", ext)
	}

	if err != nil {
		return
	}

	err = conf.validate()
	return
}

func (conf agentConfig) validate() (errs error) {
	if conf.RTI.State != "" {
		if _, err := proto.ParseRuntimeState(conf.RTI.State); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rti.state: %w", err))
		}
	}

	if conf.Logging.Level != "" {
		if _, err := log.ParseLevel(conf.Logging.Level); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("logging.level: %w", err))
		}
	}
	switch conf.Logging.Format {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("logging.format: unknown format %q", conf.Logging.Format))
	}

	if conf.Inspect.Listen != "" {
		if _, _, err := net.SplitHostPort(conf.Inspect.Listen); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("inspect.listen: %w", err))
		}
	}

	for i, sub := range conf.Subscribe {
		if sub.Channel == "" {
			errs = multierror.Append(errs, fmt.Errorf("subscribe[%d].channel is empty", i))
		}
		switch sub.Format {
		case "", "text", "json":
		default:
			errs = multierror.Append(errs, fmt.Errorf("subscribe[%d].format: unknown format %q", i, sub.Format))
		}
	}

	return
}

// options for a Client based on this configuration.
func (rc rtiConf) options() rti.Options {
	return rti.Options{
		Application:        rc.Application,
		URL:                rc.URL,
		Federation:         rc.Federation,
		Secret:             rc.Secret,
		User:               rc.User,
		Password:           rc.Password,
		ClientID:           rc.ClientID,
		Host:               rc.Host,
		Station:            rc.Station,
		Participant:        rc.Participant,
		Role:               rc.Role,
		FullName:           rc.FullName,
		Capabilities:       rc.Capabilities,
		Incognito:          rc.Incognito,
		InsecureSkipVerify: rc.InsecureSkipVerify,
	}
}

// presence configured in this block. An unset state is Unknown.
func (rc rtiConf) presence() presence {
	state, _ := proto.ParseRuntimeState(rc.State)

	return presence{
		Participant: rc.Participant,
		Role:        rc.Role,
		FullName:    rc.FullName,
		Station:     rc.Station,
		State:       state,
	}
}

// apply the changed fields of another presence to the Client.
func (p presence) apply(c *rti.Client, next presence) {
	if p.Participant != next.Participant || p.Role != next.Role || p.FullName != next.FullName {
		c.SetParticipant(next.Participant, next.Role, next.FullName)
	}
	if p.Station != next.Station {
		c.SetStation(next.Station)
	}
	if p.State != next.State {
		c.SetState(next.State)
	}
}

// configureLogging based on the Logging-configuration block.
func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}
