// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/rti"
)

// exchange messages between an user and an RTI channel over the filesystem.
type exchange struct {
	directory  string
	channel    string
	knownFiles sync.Map

	client  *rti.Client
	runner  *runner
	watcher *fsnotify.Watcher
}

// startExchange for the "serve-dir" CLI option.
func startExchange(args []string) {
	cf := newFlagSet("serve-dir")
	args = cf.parse(args, 2, 2)

	ex := &exchange{
		channel:   args[0],
		directory: args[1],
	}

	var err error
	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(ex.directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	ex.client, ex.runner = cf.connect()
	ex.client.Subscribe(ex.channel, ex.saveMessage, true)

	ctx, stop := interruptContext()
	defer stop()

	go ex.handler(ctx, stop)

	_ = ex.runner.run(ctx)
	ex.client.Disconnect()
	_ = ex.watcher.Close()
}

// cleanFilepath creates a relative path from the initial path to a new file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
		return ""
	} else {
		return rel
	}
}

// messageFilename for a message received now.
func (ex *exchange) messageFilename(now time.Time) string {
	name := fmt.Sprintf("%s-%d", hex.EncodeToString([]byte(ex.channel)), now.UnixNano())
	return filepath.Join(ex.directory, name)
}

// saveMessage is the subscription callback, writing each message into its own file.
func (ex *exchange) saveMessage(channel, content string) {
	filePath := ex.messageFilename(time.Now())
	logger := log.WithFields(log.Fields{
		"channel": channel,
		"file":    filePath,
	})

	ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		logger.WithError(err).Error("Writing file errored")
		return
	}

	logger.Info("Saved received message")
}

func (ex *exchange) handler(ctx context.Context, stop func()) {
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return
		}
	}
}

// readNewFile and publish its content. A file might still be written to, thus reading is retried.
func (ex *exchange) readNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if content, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if len(content) == 0 {
			log.WithField("file", e.Name).Debug("File is still empty, retrying..")
		} else {
			ex.knownFiles.Store(ex.cleanFilepath(e.Name), struct{}{})
			ex.publish(e.Name, string(content))
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

// publish on the polling goroutine.
func (ex *exchange) publish(file, content string) {
	ok := ex.runner.do(func() {
		logger := log.WithFields(log.Fields{
			"file":    file,
			"channel": ex.channel,
		})

		if err := ex.client.Publish(ex.channel, content, true); err != nil {
			logger.WithError(err).Error("Publishing file errored")
		} else if !ex.client.IsConnected() {
			logger.Warn("Not connected, file was not published")
		} else {
			logger.Info("Published file")
		}
	})

	if !ok {
		log.WithField("file", file).Warn("Client stopped, file was not published")
	}
}
