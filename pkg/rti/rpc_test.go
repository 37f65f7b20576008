// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

// echo replies to all RPC calls sent on the latest connection, rejecting the method "reject".
func echo(t *testing.T, tr *mockTransport) {
	for _, f := range parseFrames(t, tr.conn().takeSent()) {
		if f.Cid == 0 || f.Event == "" || f.Event[0] == '#' {
			continue
		}

		if f.Event == "reject" {
			tr.receive(fmt.Sprintf(`{"rid":%d,"error":%s}`, f.Cid, f.Data))
		} else {
			tr.receive(fmt.Sprintf(`{"rid":%d,"data":%s}`, f.Cid, f.Data))
		}
	}
}

func TestInvokeEcho(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	var replies []string
	if err := c.Invoke("echo", "hello", func(reply string) { replies = append(replies, reply) }); err != nil {
		t.Fatal(err)
	}

	echo(t, tr)
	pollAll(c)

	if !reflect.DeepEqual(replies, []string{"hello"}) {
		t.Fatalf("unexpected replies %q", replies)
	}

	// A duplicated reply is not resolved again.
	tr.receive(`{"rid":5,"data":"hello"}`)
	pollAll(c)
	if len(replies) != 1 {
		t.Fatalf("call was resolved twice: %q", replies)
	}
}

func TestInvokeReject(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})
	rec := &recorder{}
	rec.attach(c)

	var replies, errs []string
	err := c.InvokeWithError("reject", "nope",
		func(reply string) { replies = append(replies, reply) },
		func(e string) { errs = append(errs, e) })
	if err != nil {
		t.Fatal(err)
	}

	echo(t, tr)
	pollAll(c)

	if len(replies) != 0 {
		t.Fatalf("success callback was called: %q", replies)
	}
	if !reflect.DeepEqual(errs, []string{"nope"}) {
		t.Fatalf("unexpected errors %q", errs)
	}
	if len(rec.errors) != 0 {
		t.Fatalf("error was reported generally: %v", rec.errors)
	}
	if len(c.rpcCallbacks) != 0 || len(c.rpcErrorCallbacks) != 0 {
		t.Fatal("resolved call is still pending")
	}
}

func TestInvokeRejectWithoutErrorCallback(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})
	rec := &recorder{}
	rec.attach(c)

	var replies []string
	if err := c.Invoke("reject", "nope", func(reply string) { replies = append(replies, reply) }); err != nil {
		t.Fatal(err)
	}

	echo(t, tr)
	pollAll(c)

	if len(replies) != 0 {
		t.Fatalf("success callback was called: %q", replies)
	}
	if !reflect.DeepEqual(rec.errors, [][2]string{{"rpc", "nope"}}) {
		t.Fatalf("expected an rpc error, got %v", rec.errors)
	}
}

func TestInvokeNonStringReplies(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	var replies, errs []string
	for i := 0; i < 2; i++ {
		_ = c.InvokeWithError("stats", "", func(reply string) { replies = append(replies, reply) },
			func(e string) { errs = append(errs, e) })
	}
	tr.conn().takeSent()

	tr.receive(`{"rid":5,"data":{"clients": 3, "channels": [1, 2]}}`)
	tr.receive(`{"rid":6,"error":{"name":"Error","message":"oof"}}`)
	pollAll(c)

	if !reflect.DeepEqual(replies, []string{`{"clients":3,"channels":[1,2]}`}) {
		t.Fatalf("unexpected replies %q", replies)
	}
	if !reflect.DeepEqual(errs, []string{`{"name":"Error","message":"oof"}`}) {
		t.Fatalf("unexpected errors %q", errs)
	}
}

func TestInvokeCorrelationIDs(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	for i := 0; i < 3; i++ {
		_ = c.Invoke("echo", fmt.Sprint(i), nil)
	}

	var cids []uint64
	for _, f := range parseFrames(t, tr.conn().takeSent()) {
		cids = append(cids, f.Cid)
	}

	// The handshake used cid 1 and the subscriptions after authentication 2 to 4.
	if !reflect.DeepEqual(cids, []uint64{5, 6, 7}) {
		t.Fatalf("unexpected correlation ids %v", cids)
	}
}

func TestTransmit(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})

	if err := c.Transmit("custom", "data"); err != nil {
		t.Fatal(err)
	}
	if frames := tr.conn().takeSent(); !reflect.DeepEqual(frames, []string{`{"event":"custom","data":"data"}`}) {
		t.Fatalf("unexpected frames %q", frames)
	}
}

func TestInvokeAcrossReconnect(t *testing.T) {
	c, tr, clock := connectTestClient(t, Options{})
	rec := &recorder{}
	rec.attach(c)

	var oldReplies, oldErrs []string
	err := c.InvokeWithError("slow", "old",
		func(reply string) { oldReplies = append(oldReplies, reply) },
		func(e string) { oldErrs = append(oldErrs, e) })
	if err != nil {
		t.Fatal(err)
	}
	if frames := parseFrames(t, tr.conn().takeSent()); len(frames) != 1 || frames[0].Cid != 5 {
		t.Fatalf("unexpected frames %v", frames)
	}

	tr.conn().open = false
	c.Poll()
	clock.advance(2100 * time.Millisecond)
	c.Poll()
	if tr.opened != 2 {
		t.Fatalf("expected a reconnect, got %d connections", tr.opened)
	}

	expectedErrs := []string{"call 5 abandoned: connection reset"}
	if !reflect.DeepEqual(oldErrs, expectedErrs) {
		t.Fatalf("expected errors %q, got %q", expectedErrs, oldErrs)
	}
	if len(c.rpcCallbacks) != 0 || len(c.rpcErrorCallbacks) != 0 {
		t.Fatal("abandoned call is still pending")
	}

	establish(t, c, tr)
	tr.conn().takeSent()

	var newReplies []string
	if err := c.Invoke("slow", "new", func(reply string) { newReplies = append(newReplies, reply) }); err != nil {
		t.Fatal(err)
	}
	if frames := parseFrames(t, tr.conn().takeSent()); len(frames) != 1 || frames[0].Cid != 5 {
		t.Fatalf("expected the new call to reuse cid 5, got %v", frames)
	}

	tr.receive(`{"rid":5,"error":"rejected"}`)
	pollAll(c)

	if !rec.hasError("rpc", "rejected") {
		t.Fatalf("expected rpc error, got %v", rec.errors)
	}
	if !reflect.DeepEqual(oldErrs, expectedErrs) || len(oldReplies) != 0 || len(newReplies) != 0 {
		t.Fatalf("reply reached a wrong callback: old %q %q, new %q", oldReplies, oldErrs, newReplies)
	}
}

func TestInvokeWithoutErrorCallbackDropsStaleEntry(t *testing.T) {
	c, tr, _ := connectTestClient(t, Options{})
	rec := &recorder{}
	rec.attach(c)

	var stale []string
	c.rpcErrorCallbacks[5] = func(e string) { stale = append(stale, e) }

	if err := c.Invoke("reject", "nope", nil); err != nil {
		t.Fatal(err)
	}
	echo(t, tr)
	pollAll(c)

	if len(stale) != 0 {
		t.Fatalf("stale callback was called: %q", stale)
	}
	if !rec.hasError("rpc", "nope") {
		t.Fatalf("expected rpc error, got %v", rec.errors)
	}
}
