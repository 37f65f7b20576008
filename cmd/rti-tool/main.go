// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/inhumate/rti-go/pkg/rti"
)

// printUsage of rti-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s publish|subscribe|invoke|clients|serve-dir|agent:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s publish [flags] channel -|message\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Publishes the message or the stdin (-) on the channel.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s subscribe [flags] channel...\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints all messages received on the channels until interrupted.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s invoke [flags] method [data]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Invokes a broker RPC method and prints its reply.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s clients [flags]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Requests the presence of all clients and prints the answers.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s serve-dir [flags] channel directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Writes all messages received on the channel into the directory. If the user\n")
	_, _ = fmt.Fprintf(os.Stderr, "  drops a new file in the directory, its content will be published.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s agent configuration.toml|configuration.yaml\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Runs a long-living client as configured, serving an introspection API.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "Flags of all commands except agent:\n%s", newFlagSet("").FlagUsages())

	os.Exit(1)
}

// printFatal of an error with a short context description and exits afterwards.
func printFatal(err error, msg string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n  %v\n", os.Args[0], msg, err)
	os.Exit(1)
}

// commandFlags are shared by all one-shot commands.
type commandFlags struct {
	*pflag.FlagSet

	opts     rti.Options
	logLevel string
}

func newFlagSet(name string) *commandFlags {
	cf := &commandFlags{FlagSet: pflag.NewFlagSet(name, pflag.ContinueOnError)}

	cf.StringVarP(&cf.opts.URL, "url", "u", "", "broker URL, defaults to RTI_URL or "+rti.DefaultURL)
	cf.StringVarP(&cf.opts.Federation, "federation", "f", "", "federation, defaults to RTI_FEDERATION")
	cf.StringVar(&cf.opts.Secret, "secret", "", "broker secret, overridden by RTI_SECRET")
	cf.StringVar(&cf.opts.ClientID, "client-id", "", "client id, random if unset")
	cf.StringVar(&cf.opts.Application, "application", "rti-tool", "application name")
	cf.BoolVar(&cf.opts.Incognito, "incognito", false, "neither announce presence nor channels")
	cf.BoolVar(&cf.opts.InsecureSkipVerify, "insecure", false, "skip the certificate verification for wss://")
	cf.StringVar(&cf.logLevel, "log-level", "warn", "log level")

	return cf
}

// parse the arguments and check the amount of positional ones.
func (cf *commandFlags) parse(args []string, minArgs, maxArgs int) []string {
	if err := cf.Parse(args); err != nil {
		printUsage()
	}
	if cf.NArg() < minArgs || (maxArgs >= 0 && cf.NArg() > maxArgs) {
		printUsage()
	}

	configureLogging(logConf{Level: cf.logLevel})
	return cf.Args()
}

// connect a new Client and return it with its runner.
func (cf *commandFlags) connect() (*rti.Client, *runner) {
	c, err := rti.NewClient(cf.opts)
	if err != nil {
		printFatal(err, "Creating RTI client errored")
	}

	c.OnConnected(func() {
		log.WithField("url", c.URL()).Info("Connected to the RTI broker")
	})
	c.OnDisconnected(func() {
		log.WithField("url", c.URL()).Info("Disconnected from the RTI broker")
	})

	c.Connect()
	return c, newRunner(c)
}

// interruptContext is cancelled on SIGINT.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "publish":
		publishMessage(os.Args[2:])

	case "subscribe":
		subscribeChannels(os.Args[2:])

	case "invoke":
		invokeMethod(os.Args[2:])

	case "clients":
		listClients(os.Args[2:])

	case "serve-dir":
		startExchange(os.Args[2:])

	case "agent":
		startAgent(os.Args[2:])

	default:
		printUsage()
	}
}
