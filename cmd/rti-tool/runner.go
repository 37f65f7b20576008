// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"time"

	"github.com/inhumate/rti-go/pkg/rti"
)

// runner polls a Client and executes tasks from other goroutines on the polling goroutine.
type runner struct {
	client *rti.Client
	tasks  chan func()
	done   chan struct{}
}

func newRunner(client *rti.Client) *runner {
	return &runner{
		client: client,
		tasks:  make(chan func()),
		done:   make(chan struct{}),
	}
}

// do schedules a task. It returns false if the runner has already stopped.
func (r *runner) do(task func()) bool {
	select {
	case r.tasks <- task:
		return true
	case <-r.done:
		return false
	}
}

// run polls until the context is done.
func (r *runner) run(ctx context.Context) error {
	defer close(r.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		for r.client.Poll() > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case task := <-r.tasks:
			task()

		case <-ticker.C:
		}
	}
}
