// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package holdstore

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/wire"
)

var testTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// storeFactories lists every Store implementation; each test below runs
// against all of them.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemory() },
	"sqlite": func(t *testing.T) Store { return openTestSQLite(t) },
	"http+memory": func(t *testing.T) Store {
		return serveTestStore(t, NewMemory())
	},
	"http+sqlite": func(t *testing.T) Store {
		return serveTestStore(t, openTestSQLite(t))
	},
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "held.db"),
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func serveTestStore(t *testing.T, backing Store) *Client {
	t.Helper()
	server := httptest.NewServer(NewHandler(backing, clock.Fake(testTime), logging.Discard()))
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client())
}

func forEachStore(t *testing.T, test func(t *testing.T, store Store)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			test(t, factory(t))
		})
	}
}

func chat(sender, destination, body string) wire.Message {
	return wire.NewMessage(sender, destination, body, wire.KindChat, nil, testTime)
}

// ignoreID drops the store-assigned identifier from comparisons.
var ignoreID = cmpopts.IgnoreFields(wire.Message{}, "ID")

func TestDrainReturnsMessagesOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		want := []wire.Message{
			chat("alice", "bob", "first"),
			chat("carol", "bob", "second"),
			chat("alice", "bob", "third"),
		}
		for _, message := range want {
			if err := store.Append(ctx, message); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		got, err := store.Drain(ctx, "bob")
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if diff := cmp.Diff(want, got, ignoreID); diff != "" {
			t.Errorf("first drain mismatch (-want +got):\n%s", diff)
		}
		for _, message := range got {
			if message.ID == "" {
				t.Errorf("held message %q has no ID", message.Body)
			}
		}

		again, err := store.Drain(ctx, "bob")
		if err != nil {
			t.Fatalf("second Drain: %v", err)
		}
		if again == nil || len(again) != 0 {
			t.Errorf("second drain = %#v, want empty non-nil slice", again)
		}
	})
}

func TestDrainIsolatesHandles(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, message := range []wire.Message{
			chat("alice", "bob", "for bob"),
			chat("alice", "carol", "for carol"),
		} {
			if err := store.Append(ctx, message); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		got, err := store.Drain(ctx, "bob")
		if err != nil {
			t.Fatalf("Drain(bob): %v", err)
		}
		if len(got) != 1 || got[0].Body != "for bob" {
			t.Fatalf("Drain(bob) = %+v", got)
		}
		got, err = store.Drain(ctx, "carol")
		if err != nil {
			t.Fatalf("Drain(carol): %v", err)
		}
		if len(got) != 1 || got[0].Body != "for carol" {
			t.Fatalf("Drain(carol) = %+v", got)
		}
	})
}

func TestMetadataAndKindSurvive(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		message := wire.NewMessage("thermometer1", "bob", "Temperature range data", wire.KindNotification,
			map[string]any{"temps": []any{20.5, 24.25}, "time": "12:00:00"}, testTime)
		if err := store.Append(ctx, message); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := store.Drain(ctx, "bob")
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if diff := cmp.Diff([]wire.Message{message}, got, ignoreID); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAppendRejectsInvalidMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Append(ctx, chat("alice", "", "nowhere")); err == nil {
			t.Error("Append accepted an empty destination")
		}
		if err := store.Append(ctx, chat("", "bob", "nobody")); err == nil {
			t.Error("Append accepted an empty sender")
		}
	})
}

func TestConcurrentDrainsDeliverExactlyOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		const total = 50
		for i := range total {
			if err := store.Append(ctx, chat("alice", "bob", fmt.Sprintf("message-%d", i))); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		var (
			mu   sync.Mutex
			seen = make(map[string]int)
			wg   sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := store.Drain(ctx, "bob")
				if err != nil {
					t.Errorf("Drain: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				for _, message := range got {
					seen[message.Body]++
				}
			}()
		}
		wg.Wait()

		if len(seen) != total {
			t.Errorf("drained %d distinct messages, want %d", len(seen), total)
		}
		for body, count := range seen {
			if count != 1 {
				t.Errorf("%s drained %d times", body, count)
			}
		}
	})
}

func TestMemoryPending(t *testing.T) {
	store := NewMemory()
	if err := store.Append(context.Background(), chat("alice", "bob", "hi")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := store.Pending("bob"); got != 1 {
		t.Errorf("Pending(bob) = %d, want 1", got)
	}
	if _, err := store.Drain(context.Background(), "bob"); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if got := store.Pending("bob"); got != 0 {
		t.Errorf("Pending(bob) after drain = %d, want 0", got)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "held.db")
	ctx := context.Background()

	first, err := OpenSQLite(SQLiteConfig{Path: path, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := first.Append(ctx, chat("alice", "bob", "survives restart")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := OpenSQLite(SQLiteConfig{Path: path, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.Drain(ctx, "bob")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 1 || got[0].Body != "survives restart" {
		t.Errorf("Drain after reopen = %+v", got)
	}
}
