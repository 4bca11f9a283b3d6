// table.go
//
// Session table: the unique owner of every session on a server, keyed by
// session_id. Grounded on original_source's SessionManager (cleanup_expired,
// sessions_needing_keepalive) but simplified to match the teacher's single
// sync.RWMutex-guarded-map idiom (device/device.go) rather than an async
// runtime's RwLock. Per the §9 design note on cyclic references, a Session
// holds only its own id — it never references the table back, so the table
// can be dropped or swept without coordinating with live sessions.

package session

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/samber/oops"
)

// MaxSessions bounds the table so a flood of handshakes cannot exhaust
// server memory indefinitely; once full, new sessions are rejected as a
// resource error (§7).
const MaxSessions = 1000

// Table owns every established session on a server.
type Table struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

// NewTable constructs an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[uint64]*Session)}
}

// AllocateSessionID returns a random, currently-unused 64-bit session id
// suitable for use as handshake.SessionIDAllocator.
func (t *Table) AllocateSessionID() (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.sessions) >= MaxSessions {
		return 0, oops.Code("resource").Errorf("session table full (%d sessions)", MaxSessions)
	}

	for attempt := 0; attempt < 8; attempt++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, oops.Code("resource").Wrapf(err, "generate session id")
		}
		id := binary.BigEndian.Uint64(buf[:])
		if _, exists := t.sessions[id]; !exists {
			return id, nil
		}
	}
	return 0, oops.Code("resource").Errorf("could not allocate a unique session id")
}

// Insert adds a newly-Established session to the table.
func (t *Table) Insert(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.SessionID()] = s
}

// Get looks up a session by id.
func (t *Table) Get(id uint64) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Remove drops a session from the table (on Closed teardown). It does not
// close the session itself — callers close first, then remove.
func (t *Table) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Len reports the number of live sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// CleanupExpired closes and removes every session whose configured
// lifetime or idle-read deadline has passed, mirroring the original
// SessionManager's cleanup_expired sweep. Returns the ids removed.
func (t *Table) CleanupExpired(now time.Time) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []uint64
	for id, s := range t.sessions {
		if s.IsExpired(now) || s.IsIdleTimedOut(now) {
			s.Close()
			delete(t.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// NeedingKeepalive returns every active session whose send side has been
// idle past KeepaliveInterval.
func (t *Table) NeedingKeepalive(now time.Time) []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var due []*Session
	for _, s := range t.sessions {
		if s.State() == StateActive && s.NeedsKeepalive(now) {
			due = append(due, s)
		}
	}
	return due
}
