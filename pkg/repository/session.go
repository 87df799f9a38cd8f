package repository

import (
	"sync"
	"time"

	"github.com/dskvich/ai-doctor/pkg/session"
)

type sessionEntry struct {
	mu         sync.Mutex
	state      *session.State
	lastUpdate time.Time
}

type sessionRepository struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
	ttl      time.Duration
}

func NewSessionRepository(ttl time.Duration) *sessionRepository {
	return &sessionRepository{
		sessions: make(map[int64]*sessionEntry),
		ttl:      ttl,
	}
}

// Acquire returns the live session of a chat and holds it exclusively until
// release is called. A session idle for longer than the TTL is replaced with
// a fresh one.
func (r *sessionRepository) Acquire(chatID int64) (state *session.State, release func()) {
	for {
		entry := r.entry(chatID)
		entry.mu.Lock()

		// Count or Clear may have dropped the entry while we waited for it.
		if !r.holds(chatID, entry) {
			entry.mu.Unlock()
			continue
		}

		if r.ttl > 0 && time.Since(entry.lastUpdate) > r.ttl {
			entry.state = session.New()
		}

		return entry.state, func() {
			entry.lastUpdate = time.Now()
			entry.mu.Unlock()
		}
	}
}

func (r *sessionRepository) entry(chatID int64) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[chatID]
	if !ok {
		entry = &sessionEntry{state: session.New(), lastUpdate: time.Now()}
		r.sessions[chatID] = entry
	}
	return entry
}

func (r *sessionRepository) holds(chatID int64, entry *sessionEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[chatID] == entry
}

// Clear ends the session of a chat. The next Acquire starts a new one.
func (r *sessionRepository) Clear(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, chatID)
}

// Count returns the number of sessions that have not expired and drops the
// expired ones that nobody holds.
func (r *sessionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for chatID, entry := range r.sessions {
		if !entry.mu.TryLock() {
			n++
			continue
		}
		expired := r.ttl > 0 && time.Since(entry.lastUpdate) > r.ttl
		entry.mu.Unlock()

		if expired {
			delete(r.sessions, chatID)
			continue
		}
		n++
	}
	return n
}
