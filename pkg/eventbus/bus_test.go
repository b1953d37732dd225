// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := b.Subscribe(ctx, "topic", false)
	defer unsub()

	b.Publish("topic", 42)

	select {
	case ev := <-ch:
		if ev.(int) != 42 {
			t.Errorf("expected 42, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestReplaceSemanticsKeepNewest(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub := b.Subscribe(ctx, "topic", false)
	defer unsub()

	// subscriber is not draining: the second publish replaces the first
	b.Publish("topic", "old")
	b.Publish("topic", "new")

	select {
	case ev := <-ch:
		if ev.(string) != "new" {
			t.Errorf("expected newest event, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeWithLast(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Publish("topic", "stored")

	ch, unsub := b.Subscribe(ctx, "topic", true)
	defer unsub()

	select {
	case ev := <-ch:
		if ev.(string) != "stored" {
			t.Errorf("expected stored event, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected immediate delivery of last event")
	}
}

func TestGetLast(t *testing.T) {
	b := New()
	defer b.Close()

	if _, ok := b.GetLast("topic"); ok {
		t.Error("expected no last event on fresh bus")
	}
	b.Publish("topic", 7)
	v, ok := b.GetLast("topic")
	if !ok || v.(int) != 7 {
		t.Errorf("expected last event 7, got %v (%v)", v, ok)
	}
}

func TestClosedBusIsInert(t *testing.T) {
	b := New()
	b.Close()

	b.Publish("topic", 1) // no-op

	ch, _ := b.Subscribe(context.Background(), "topic", true)
	if _, open := <-ch; open {
		t.Error("expected closed channel from closed bus")
	}
}
