// Package session keeps the in-memory registry of dialogue sessions:
// creation and lookup by client identifier, per-session turn
// serialization, and timed eviction of idle entries.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aisetech/chat-relay/backend/internal/service/ai"
)

// Store owns every live session. The store-wide lock guards only the map;
// backend calls happen solely inside the per-session critical section, so
// unrelated sessions never block each other.
type Store struct {
	engine *ai.Service // nil when the backend is not configured

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore bootstraps an empty registry. The engine seeds the conversation
// handle of every new session and releases it on eviction.
func NewStore(engine *ai.Service) *Store {
	return &Store{
		engine:   engine,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session bound to id, creating it when id is
// empty or unknown. A stale id after eviction transparently yields a fresh
// session under that same id rather than an error. The returned bool
// reports whether a new session was created.
func (st *Store) GetOrCreate(ctx context.Context, id string) (*Session, bool) {
	if id != "" {
		if sess, ok := st.Get(id); ok {
			sess.Touch()
			return sess, false
		}
	} else {
		id = uuid.NewString()
	}

	// Publish the session with its lock already held so concurrent turns
	// on the same id block until the engine handle is seeded.
	sess := newSession(id, time.Now().UTC())
	sess.Lock()

	st.mu.Lock()
	if existing, ok := st.sessions[id]; ok {
		// Another connection created it between lookup and insert.
		st.mu.Unlock()
		sess.Unlock()
		existing.Touch()
		return existing, false
	}
	st.sessions[id] = sess
	st.mu.Unlock()

	// Seed the engine handle outside the store lock; priming may hit the
	// backend and must not stall unrelated sessions.
	sess.SetConversation(st.engine.NewConversation(ctx))
	sess.Unlock()

	log.Printf("[session] created session id=%s", id)
	return sess, true
}

// Get looks up a session without refreshing its idle clock.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Touch refreshes a session's idle clock, if it still exists.
func (st *Store) Touch(id string) {
	if sess, ok := st.Get(id); ok {
		sess.Touch()
	}
}

// Remove drops a session and releases its engine handle. Removing an
// unknown id is a no-op.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return
	}

	sess.Lock()
	st.engine.Release(sess.Conversation())
	sess.SetConversation(nil)
	sess.Unlock()
	log.Printf("[session] removed session id=%s", id)
}

// ReleaseAll drops every session and releases its engine handle; the
// shutdown path calls it once the listener has stopped. Waiting on each
// session's lock lets in-flight turns finish first. Returns how many
// sessions were released.
func (st *Store) ReleaseAll() int {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, sess := range sessions {
		sess.Lock()
		st.engine.Release(sess.Conversation())
		sess.SetConversation(nil)
		sess.Unlock()
	}

	if len(sessions) > 0 {
		log.Printf("[session] released %d session(s)", len(sessions))
	}
	return len(sessions)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// EvictIdle removes every session idle for at least threshold and returns
// how many were evicted. A session whose critical section is held is
// mid-turn and is skipped; its idle clock is refreshed when the turn
// completes, so it is reconsidered on a later sweep.
func (st *Store) EvictIdle(now time.Time, threshold time.Duration) int {
	st.mu.RLock()
	candidates := make([]*Session, 0)
	for _, sess := range st.sessions {
		if now.Sub(sess.LastActivity()) >= threshold {
			candidates = append(candidates, sess)
		}
	}
	st.mu.RUnlock()

	evicted := 0
	for _, sess := range candidates {
		if !sess.TryLock() {
			continue
		}
		// Re-check under the session lock: a turn may have finished and
		// touched the session since the scan.
		if now.Sub(sess.LastActivity()) < threshold {
			sess.Unlock()
			continue
		}

		st.mu.Lock()
		delete(st.sessions, sess.ID)
		st.mu.Unlock()

		st.engine.Release(sess.Conversation())
		sess.SetConversation(nil)
		sess.Unlock()

		log.Printf("[session] evicted idle session id=%s idle=%s", sess.ID, now.Sub(sess.LastActivity()).Truncate(time.Second))
		evicted++
	}
	return evicted
}

// RunSweeper periodically evicts idle sessions until ctx is cancelled.
// One ticker serves the whole store, so shutdown stops a single timer.
func (st *Store) RunSweeper(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.EvictIdle(now.UTC(), threshold); n > 0 {
				log.Printf("[session] sweep evicted %d idle session(s), %d remaining", n, st.Len())
			}
		}
	}
}
