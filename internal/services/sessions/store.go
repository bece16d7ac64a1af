// Package sessions keeps per-session conversation history and the cached
// vector index of the session's current PDF.
package sessions

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/vectorindex"
)

type session struct {
	mu        sync.Mutex // held across one request's read-generate-append cycle
	refs      int        // lock holders and waiters; guarded by Store.mu
	history   []models.Turn
	indexHash string
	index     *vectorindex.Index
	lastUsed  time.Time
	deleted   bool // cleared while in use; removed by the last unlock unless written again
}

// Store is an in-memory, process-wide session store.
//
// Sessions idle for longer than ttl are removed by Sweep, and once more than
// maxSessions exist the least recently used are evicted. A session that is
// locked or waited on is never evicted. Zero ttl or maxSessions disables
// that bound.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	logger      arbor.ILogger
}

var _ interfaces.SessionStore = (*Store)(nil)

// NewStore creates an empty session store
func NewStore(ttl time.Duration, maxSessions int, logger arbor.ILogger) *Store {
	return &Store{
		sessions:    make(map[string]*session),
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		logger:      logger,
	}
}

// getOrCreate must be called with s.mu held
func (s *Store) getOrCreate(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{lastUsed: s.now()}
		s.sessions[id] = sess
		s.evictOverflow(id)
	}
	return sess
}

// Lock serialises requests for one session id and returns the unlock func.
// Different ids never contend beyond the short map lookup.
func (s *Store) Lock(id string) func() {
	s.mu.Lock()
	sess := s.getOrCreate(id)
	sess.refs++
	s.mu.Unlock()

	sess.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sess.mu.Unlock()
			s.mu.Lock()
			sess.refs--
			sess.lastUsed = s.now()
			if sess.refs == 0 && sess.deleted && s.sessions[id] == sess {
				delete(s.sessions, id)
			}
			s.mu.Unlock()
		})
	}
}

// History returns a copy of the session's turns, empty if the id is unknown
func (s *Store) History(id string) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []models.Turn{}
	}
	history := make([]models.Turn, len(sess.history))
	copy(history, sess.history)
	return history
}

// Append adds turns to the end of the session's history
func (s *Store) Append(id string, turns ...models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	sess.deleted = false
	sess.history = append(sess.history, turns...)
	sess.lastUsed = s.now()
}

// Index returns the cached index for the session if it was built from the
// document with the given hash.
func (s *Store) Index(id, docHash string) (*vectorindex.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.index == nil || sess.indexHash != docHash {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess.index, true
}

// PutIndex caches a fully built index for the session, replacing any index
// of a previous document.
func (s *Store) PutIndex(id, docHash string, idx *vectorindex.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	sess.deleted = false
	sess.index = idx
	sess.indexHash = docHash
	sess.lastUsed = s.now()
}

// Delete drops the session's history and index. It reports whether the
// session existed. A session that is locked or waited on keeps its entry,
// and so its mutex, until the last unlock; requests queued behind it stay
// serialised and start from an empty history.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if sess.refs > 0 {
		sess.history = nil
		sess.index = nil
		sess.indexHash = ""
		sess.deleted = true
		return true
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.refs == 0 && now.Sub(sess.lastUsed) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// evictOverflow removes least recently used sessions until the bound holds.
// keep is never evicted. Must be called with s.mu held.
func (s *Store) evictOverflow(keep string) {
	if s.maxSessions <= 0 {
		return
	}

	for len(s.sessions) > s.maxSessions {
		oldestID := ""
		var oldest time.Time
		for id, sess := range s.sessions {
			if id == keep || sess.refs > 0 {
				continue
			}
			if oldestID == "" || sess.lastUsed.Before(oldest) {
				oldestID = id
				oldest = sess.lastUsed
			}
		}
		if oldestID == "" {
			s.logger.Warn().Int("sessions", len(s.sessions)).Msg("Session limit exceeded but every session is in use")
			return
		}
		delete(s.sessions, oldestID)
		s.logger.Debug().Str("session_id", oldestID).Msg("Evicted least recently used session")
	}
}
