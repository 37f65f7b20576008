// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"testing"
	"time"

	"github.com/inhumate/rti-go/pkg/rti"
)

func TestRunnerTasks(t *testing.T) {
	c, err := rti.NewClient(rti.Options{URL: "ws://localhost:8000/", ClientID: "runner"})
	if err != nil {
		t.Fatal(err)
	}

	r := newRunner(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error)
	go func() { errChan <- r.run(ctx) }()

	var executed []int
	for i := 0; i < 3; i++ {
		i := i
		if !r.do(func() { executed = append(executed, i) }) {
			t.Fatalf("task %d was not scheduled", i)
		}
	}
	r.do(cancel)

	if err := <-errChan; err != context.Canceled {
		t.Fatalf("expected %v, got %v", context.Canceled, err)
	}
	if len(executed) != 3 || executed[0] != 0 || executed[2] != 2 {
		t.Fatalf("unexpected executed tasks %v", executed)
	}

	if r.do(func() {}) {
		t.Fatal("task was scheduled on a stopped runner")
	}
}
