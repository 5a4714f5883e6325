package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edustudy/edustudy-agent/internal/domain"
)

// SessionStore keeps sessions and their inline message logs in memory.
// Used for local dev and tests.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(ctx context.Context, ownerID domain.OwnerID, title string) (domain.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := domain.SessionID(uuid.New().String())
	s.sessions[id] = &domain.Session{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (s *SessionStore) Append(ctx context.Context, id domain.SessionID, msg *domain.Message, opts domain.AppendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}

	sess.Messages = append(sess.Messages, msg)
	sess.MessageCount = len(sess.Messages)
	sess.UpdatedAt = s.now()
	if opts.ConversationID != "" {
		sess.ConversationID = opts.ConversationID
	}
	if opts.Title != "" {
		sess.Title = opts.Title
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySession(sess), nil
}

func (s *SessionStore) ListByOwner(ctx context.Context, ownerID domain.OwnerID, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, copySession(sess))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStore) Delete(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// copySession shields callers from later appends; messages themselves
// are immutable so sharing them is fine.
func copySession(sess *domain.Session) *domain.Session {
	cp := *sess
	cp.Messages = make([]*domain.Message, len(sess.Messages))
	copy(cp.Messages, sess.Messages)
	return &cp
}
