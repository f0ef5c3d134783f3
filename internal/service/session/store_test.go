package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aisetech/chat-relay/backend/internal/model/chat"
	"github.com/aisetech/chat-relay/backend/internal/service/session"
)

func TestGetOrCreateAssignsID(t *testing.T) {
	store := session.NewStore(nil)
	ctx := context.Background()

	sess, created := store.GetOrCreate(ctx, "")
	if !created {
		t.Fatal("expected a new session")
	}
	if sess.ID == "" {
		t.Fatal("expected a generated session id")
	}

	again, created := store.GetOrCreate(ctx, sess.ID)
	if created {
		t.Fatal("expected the existing session")
	}
	if again != sess {
		t.Fatalf("expected the same session for id %s", sess.ID)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestGetOrCreateAcceptsUnknownID(t *testing.T) {
	store := session.NewStore(nil)

	sess, created := store.GetOrCreate(context.Background(), "stale-client-id")
	if !created {
		t.Fatal("expected a fresh session for an unknown id")
	}
	if sess.ID != "stale-client-id" {
		t.Fatalf("expected the supplied id to be kept, got %s", sess.ID)
	}
}

func TestTurnsRecordedInOrder(t *testing.T) {
	store := session.NewStore(nil)
	sess, _ := store.GetOrCreate(context.Background(), "")

	sess.Lock()
	sess.Append(chat.RoleUser, "first")
	sess.Append(chat.RoleAssistant, "second")
	sess.Append(chat.RoleUser, "third")
	turns := sess.Turns()
	recent := sess.Recent(2)
	sess.Unlock()

	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, want := range []string{"first", "second", "third"} {
		if turns[i].Text != want {
			t.Fatalf("turn %d: got %q want %q", i, turns[i].Text, want)
		}
	}

	if len(recent) != 2 {
		t.Fatalf("expected 2 recent turns, got %d", len(recent))
	}
	if recent[0].Text != "second" || recent[1].Text != "third" {
		t.Fatalf("unexpected recent window: %v", recent)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := session.NewStore(nil)
	sess, _ := store.GetOrCreate(context.Background(), "")

	store.Remove(sess.ID)
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
	// Second removal of the same id is a no-op.
	store.Remove(sess.ID)
}

func TestEvictIdleBoundary(t *testing.T) {
	store := session.NewStore(nil)
	sess, _ := store.GetOrCreate(context.Background(), "")

	threshold := 30 * time.Minute
	last := sess.LastActivity()

	if n := store.EvictIdle(last.Add(threshold-time.Millisecond), threshold); n != 0 {
		t.Fatalf("session just under the threshold was evicted (%d)", n)
	}
	if _, ok := store.Get(sess.ID); !ok {
		t.Fatal("session should have survived the sweep")
	}

	if n := store.EvictIdle(last.Add(threshold+time.Millisecond), threshold); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := store.Get(sess.ID); ok {
		t.Fatal("session should have been evicted")
	}
}

func TestEvictIdleSkipsMidTurnSession(t *testing.T) {
	store := session.NewStore(nil)
	sess, _ := store.GetOrCreate(context.Background(), "")

	sess.Lock()
	farFuture := sess.LastActivity().Add(24 * time.Hour)
	if n := store.EvictIdle(farFuture, time.Minute); n != 0 {
		t.Fatalf("mid-turn session was evicted (%d)", n)
	}
	if _, ok := store.Get(sess.ID); !ok {
		t.Fatal("mid-turn session must survive the sweep")
	}
	sess.Unlock()

	if n := store.EvictIdle(farFuture, time.Minute); n != 1 {
		t.Fatalf("expected eviction after the turn completed, got %d", n)
	}
}

func TestConcurrentGetOrCreateSeedsHandleBeforeTurns(t *testing.T) {
	store := session.NewStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var unseeded atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _ := store.GetOrCreate(ctx, "shared-id")
			sess.Lock()
			if sess.Conversation() == nil {
				unseeded.Add(1)
			}
			sess.Unlock()
		}()
	}
	wg.Wait()

	if n := unseeded.Load(); n != 0 {
		t.Fatalf("%d turn(s) entered the critical section before the handle was seeded", n)
	}
}

func TestReleaseAllEmptiesStore(t *testing.T) {
	store := session.NewStore(nil)
	ctx := context.Background()

	first, _ := store.GetOrCreate(ctx, "")
	store.GetOrCreate(ctx, "")

	if n := store.ReleaseAll(); n != 2 {
		t.Fatalf("expected 2 released sessions, got %d", n)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}

	first.Lock()
	conv := first.Conversation()
	first.Unlock()
	if conv != nil {
		t.Fatal("released session still holds an engine handle")
	}

	if n := store.ReleaseAll(); n != 0 {
		t.Fatalf("second release reported %d sessions", n)
	}
}
