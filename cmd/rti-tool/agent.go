// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/inspect"
	"github.com/inhumate/rti-go/pkg/proto"
	"github.com/inhumate/rti-go/pkg/rti"
)

const snapshotInterval = time.Second

// agent is a long-living client, configured by a file which is reloaded on changes.
type agent struct {
	filename string
	client   *rti.Client
	runner   *runner
	presence presence

	inspect    *inspect.Server
	httpServer *http.Server
}

// startAgent for the "agent" CLI option.
func startAgent(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	conf, err := loadConfig(args[0])
	if err != nil {
		log.WithError(err).WithField("file", args[0]).Fatal("Failed to parse config")
	}
	configureLogging(conf.Logging)

	a, err := newAgent(args[0], conf)
	if err != nil {
		log.WithError(err).Fatal("Failed to create agent")
	}

	ctx, stop := interruptContext()
	defer stop()

	a.run(ctx)
	log.Info("Shutting down..")
}

func newAgent(filename string, conf agentConfig) (a *agent, err error) {
	a = &agent{
		filename: filename,
		presence: conf.RTI.presence(),
	}

	opts := conf.RTI.options()

	var gatherer prometheus.Gatherer
	if conf.Inspect.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts.Registerer, gatherer = reg, reg
	}

	if a.client, err = rti.NewClient(opts); err != nil {
		return
	}
	a.runner = newRunner(a.client)

	if a.presence.State != proto.Unknown {
		a.client.SetState(a.presence.State)
	}

	for _, sub := range conf.Subscribe {
		a.subscribe(sub)
	}
	a.client.HandleCommands(a.handleCommand)

	if conf.Inspect.Listen != "" {
		a.inspect = inspect.NewServer(mux.NewRouter(), gatherer)
		a.httpServer = &http.Server{
			Addr:    conf.Inspect.Listen,
			Handler: a.inspect,
		}
	}

	return
}

// subscribe a configured channel, logging all of its messages.
func (a *agent) subscribe(sub subscribeConf) {
	if sub.Format == "json" {
		rti.SubscribeJSON(a.client, sub.Channel, func(channel string, v interface{}) {
			log.WithFields(log.Fields{
				"channel": channel,
				"data":    v,
			}).Info("Received message")
		}, sub.Register)
		return
	}

	a.client.Subscribe(sub.Channel, func(channel, content string) {
		log.WithFields(log.Fields{
			"channel": channel,
			"data":    content,
		}).Info("Received message")
	}, sub.Register)
}

// handleCommand answers the agent's commands.
func (a *agent) handleCommand(cmd proto.ExecuteCommand) (string, error) {
	log.WithFields(log.Fields{
		"command":     cmd.Name,
		"transaction": cmd.TransactionID,
	}).Info("Received command")

	switch cmd.Name {
	case "ping":
		return "pong", nil

	case "state":
		return a.client.State().String(), nil

	case "set-state":
		state, err := proto.ParseRuntimeState(cmd.Arguments["state"])
		if err != nil {
			return "", err
		}
		a.presence.State = state
		a.client.SetState(state)
		return state.String(), nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd.Name)
	}
}

// reload the configuration file and apply changes of the presence.
func (a *agent) reload() {
	conf, err := loadConfig(a.filename)
	if err != nil {
		log.WithError(err).WithField("file", a.filename).Warn("Failed to reload config, keeping the current one")
		return
	}

	configureLogging(conf.Logging)

	next := conf.RTI.presence()
	a.runner.do(func() {
		a.presence.apply(a.client, next)
		a.presence = next
		log.WithField("file", a.filename).Info("Reloaded config")
	})
}

// watchConfig until the context is done. The directory is watched as editors tend to replace files.
func (a *agent) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("Starting file watcher errored, config will not be reloaded")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(a.filename)); err != nil {
		log.WithError(err).Warn("Adding config directory to file watcher errored, config will not be reloaded")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != filepath.Clean(a.filename) || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			a.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("fsnotify errored")
		}
	}
}

// updateSnapshots for the introspection API until the context is done.
func (a *agent) updateSnapshots(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		a.runner.do(func() {
			a.inspect.Update(inspect.TakeSnapshot(a.client))
		})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *agent) run(ctx context.Context) {
	go a.watchConfig(ctx)

	if a.httpServer != nil {
		go a.updateSnapshots(ctx)

		go func() {
			log.WithField("listen", a.httpServer.Addr).Info("Serving introspection API")
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Introspection API errored")
			}
		}()
	}

	a.client.Connect()
	_ = a.runner.run(ctx)
	a.client.Disconnect()

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(shutdownCtx)
	}
}
