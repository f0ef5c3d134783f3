package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aisetech/chat-relay/backend/internal/model/chat"
	"github.com/aisetech/chat-relay/backend/internal/service/ai"
)

// Session binds a client identifier to its dialogue state: the recorded
// turn log and the backend conversation handle. A session may outlive its
// transport connection and be re-attached by a reconnect presenting the
// same identifier.
type Session struct {
	ID        string
	CreatedAt time.Time

	// lastUnix is touched on every turn and read by the eviction sweep;
	// it is atomic so bookkeeping never needs the turn lock.
	lastUnix atomic.Int64

	mu    sync.Mutex
	turns []chat.Turn
	conv  *ai.Conversation
}

func newSession(id string, now time.Time) *Session {
	s := &Session{ID: id, CreatedAt: now}
	s.lastUnix.Store(now.UnixNano())
	return s
}

// Touch refreshes the idle clock.
func (s *Session) Touch() {
	s.lastUnix.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent turn or touch.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastUnix.Load())
}

// Lock acquires the per-session critical section. Exactly one turn may be
// in flight per session; callers hold the lock for the whole turn,
// including the backend call.
func (s *Session) Lock() { s.mu.Lock() }

// TryLock acquires the critical section without blocking. The eviction
// sweep uses it so a mid-turn session is never removed.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Unlock releases the critical section.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append records a turn at the end of the log. Caller must hold the lock.
func (s *Session) Append(role, text string) chat.Turn {
	turn := chat.NewTurn(role, text)
	s.turns = append(s.turns, turn)
	return turn
}

// Turns returns a copy of the full turn log. Caller must hold the lock.
func (s *Session) Turns() []chat.Turn {
	return append([]chat.Turn(nil), s.turns...)
}

// Recent returns the newest n turns. Caller must hold the lock.
func (s *Session) Recent(n int) []chat.Turn {
	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	start := 0
	if len(s.turns) > n {
		start = len(s.turns) - n
	}
	return append([]chat.Turn(nil), s.turns[start:]...)
}

// Conversation returns the engine handle. Caller must hold the lock.
func (s *Session) Conversation() *ai.Conversation {
	return s.conv
}

// SetConversation swaps the engine handle. Caller must hold the lock.
func (s *Session) SetConversation(conv *ai.Conversation) {
	s.conv = conv
}
