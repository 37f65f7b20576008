// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/inhumate/rti-go/pkg/proto"
)

// runOnce runs the Client until done is called or the timeout is reached.
func runOnce(r *runner, timeout time.Duration, start func(done func())) {
	ctx, stop := interruptContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var started bool
	r.client.OnConnected(func() {
		if started {
			return
		}
		started = true
		start(cancel)
	})

	err := r.run(ctx)
	r.client.Disconnect()

	if errors.Is(err, context.DeadlineExceeded) {
		printFatal(err, "Timed out")
	}
}

// publishMessage for the "publish" CLI option.
func publishMessage(args []string) {
	cf := newFlagSet("publish")
	timeout := cf.DurationP("timeout", "t", 10*time.Second, "give up if not connected in time")
	args = cf.parse(args, 2, 2)

	var (
		channel = args[0]
		content = args[1]
	)

	if content == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			printFatal(err, "Reading input errored")
		}
		content = string(data)
	}

	_, r := cf.connect()
	runOnce(r, *timeout, func(done func()) {
		if err := r.client.Publish(channel, content, true); err != nil {
			printFatal(err, "Publishing errored")
		}
		log.WithField("channel", channel).Info("Published message")
		done()
	})
}

// subscribeChannels for the "subscribe" CLI option.
func subscribeChannels(args []string) {
	cf := newFlagSet("subscribe")
	register := cf.Bool("register", false, "announce the subscriptions as channel usage")
	args = cf.parse(args, 1, -1)

	c, r := cf.connect()
	for _, channel := range args {
		c.Subscribe(channel, func(channel, content string) {
			fmt.Printf("%s\t%s\n", channel, content)
		}, *register)
	}

	ctx, stop := interruptContext()
	defer stop()

	_ = r.run(ctx)
	c.Disconnect()
}

// invokeMethod for the "invoke" CLI option.
func invokeMethod(args []string) {
	cf := newFlagSet("invoke")
	timeout := cf.DurationP("timeout", "t", 10*time.Second, "give up if no reply was received in time")
	args = cf.parse(args, 1, 2)

	method, data := args[0], ""
	if len(args) == 2 {
		data = args[1]
	}

	var failed bool
	_, r := cf.connect()
	runOnce(r, *timeout, func(done func()) {
		err := r.client.InvokeWithError(method, data,
			func(reply string) {
				fmt.Println(reply)
				done()
			},
			func(e string) {
				_, _ = fmt.Fprintln(os.Stderr, e)
				failed = true
				done()
			})
		if err != nil {
			printFatal(err, "Invoking errored")
		}
	})

	if failed {
		os.Exit(1)
	}
}

// listClients for the "clients" CLI option.
func listClients(args []string) {
	cf := newFlagSet("clients")
	wait := cf.DurationP("wait", "w", 2*time.Second, "time to wait for answers")
	timeout := cf.DurationP("timeout", "t", 10*time.Second, "give up if not connected in time")
	cf.parse(args, 0, 0)

	c, r := cf.connect()
	runOnce(r, *timeout+*wait, func(done func()) {
		if err := c.RequestClients(); err != nil {
			printFatal(err, "Requesting clients errored")
		}

		time.AfterFunc(*wait, func() {
			r.do(func() {
				printClients(os.Stdout, c.KnownClients())
				done()
			})
		})
	})
}

func printClients(w io.Writer, clients []proto.Client) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tAPPLICATION\tSTATE\tHOST\tSTATION\tPARTICIPANT\tCAPABILITIES")
	for _, c := range clients {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%s\t%s\n",
			c.ID, c.Application, c.State, c.Host, c.Station, c.Participant, strings.Join(c.Capabilities, ","))
	}
	_ = tw.Flush()
}
