package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edustudy/edustudy-agent/internal/domain"
	"github.com/edustudy/edustudy-agent/internal/observability"
)

const (
	apologyText  = "Sorry, I encountered an error. Please try again."
	fallbackText = "I'm sorry, I couldn't process that response."
)

var errEmptyUtterance = errors.New("utterance is empty")

// Service executes conversational turns, keeping the session record
// consistent with what the user saw even when the engine call or an
// append fails partway.
type Service struct {
	dialogue domain.DialogueClient
	store    domain.SessionStore
	now      func() time.Time

	// Per-session turn locks. Turns for the same session serialize here
	// instead of trusting the caller to disable input while sending.
	mu    sync.Mutex
	locks map[domain.SessionID]*sync.Mutex
}

func NewService(dialogue domain.DialogueClient, store domain.SessionStore) *Service {
	return &Service{
		dialogue: dialogue,
		store:    store,
		now:      time.Now,
		locks:    make(map[domain.SessionID]*sync.Mutex),
	}
}

// lock entries are never evicted; one mutex per session seen by this
// process.
func (s *Service) turnLock(id domain.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

type SendTurnInput struct {
	SessionID domain.SessionID // empty = start a new session
	OwnerID   domain.OwnerID
	Text      string
}

// SendTurnOutput reports everything the turn produced. DialogueErr and
// PersistErr are partial failures, not rollbacks: when PersistErr is
// set, appends before the failing one stay committed and AgentMessages
// still lists every reply the engine produced.
type SendTurnOutput struct {
	SessionID      domain.SessionID
	Created        bool
	Title          string
	ConversationID string

	UserMessage   *domain.Message
	AgentMessages []*domain.Message

	// LocalFallback is the apology shown when the engine was unreachable.
	// It is never persisted; persisting it would falsely suggest the
	// engine replied.
	LocalFallback *domain.Message

	DialogueErr error
	PersistErr  error
}

// SendTurn executes exactly one conversational turn: resolve (or lazily
// create) the session, call the engine, persist the user message and
// every agent message in order, reconcile the continuation id and the
// title. A failed engine call still records the user's utterance on a
// best-effort basis.
func (s *Service) SendTurn(ctx context.Context, in SendTurnInput) (*SendTurnOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, errEmptyUtterance
	}

	log := observability.LoggerFromContext(ctx).With("owner_id", in.OwnerID)

	sessionID := in.SessionID
	created := false
	if sessionID == "" {
		title := "Chat - " + s.now().Format("1/2/2006")
		id, err := s.store.Create(ctx, in.OwnerID, title)
		if err != nil {
			log.Error("failed to create session", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrSessionCreate, err)
		}
		sessionID = id
		created = true
	}

	lock := s.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	log = log.With("session_id", sessionID)

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, err
	}

	out := &SendTurnOutput{
		SessionID:      sessionID,
		Created:        created,
		Title:          session.Title,
		ConversationID: session.ConversationID,
		UserMessage:    domain.NewUserText(text, s.now()),
	}

	log.Info("sending turn", "conversation_id", session.ConversationID)

	result, derr := s.dialogue.Send(ctx, text, session.ConversationID)
	if derr != nil {
		s.recoverFailedTurn(ctx, session, out, derr)
		return out, nil
	}

	// The continuation id moves forward only on a successful exchange,
	// and is written alongside every append of this turn.
	out.ConversationID = result.ConversationID

	replies := result.Messages
	if len(replies) == 0 {
		replies = []*domain.Message{domain.NewAgentText(fallbackText, s.now())}
	}

	count := len(session.Messages)
	first := session.FirstUserMessage()
	if first == nil {
		first = out.UserMessage
	}

	appendOne := func(msg *domain.Message) error {
		count++
		opts := domain.AppendOptions{ConversationID: result.ConversationID}
		if count > 1 {
			opts.Title = domain.DeriveTitle(first.Content)
		}
		if err := s.store.Append(ctx, sessionID, msg, opts); err != nil {
			return err
		}
		if opts.Title != "" {
			out.Title = opts.Title
		}
		return nil
	}

	// User message first, then each agent message in response order.
	// A failed append stops the sequence; earlier appends stay committed.
	if err := appendOne(out.UserMessage); err != nil {
		log.Error("failed to append user message", "error", err)
		out.PersistErr = fmt.Errorf("%w: user message: %v", domain.ErrPersist, err)
		out.AgentMessages = replies
		return out, nil
	}

	for i, msg := range replies {
		if err := appendOne(msg); err != nil {
			log.Error("failed to append agent message", "index", i, "error", err)
			out.PersistErr = fmt.Errorf("%w: agent message %d: %v", domain.ErrPersist, i, err)
			out.AgentMessages = replies
			return out, nil
		}
	}

	out.AgentMessages = replies

	log.Info("turn completed",
		"agent_messages", len(replies),
		"conversation_id", result.ConversationID)
	return out, nil
}

// recoverFailedTurn handles an unreachable engine: the user's utterance
// is persisted best-effort with the continuation id untouched, and a
// local-only apology is surfaced.
func (s *Service) recoverFailedTurn(ctx context.Context, session *domain.Session, out *SendTurnOutput, derr error) {
	log := observability.LoggerFromContext(ctx).With("session_id", session.ID)
	log.Error("dialogue engine call failed", "error", derr)

	if errors.Is(derr, domain.ErrDialogueUnavailable) {
		out.DialogueErr = derr
	} else {
		out.DialogueErr = fmt.Errorf("%w: %v", domain.ErrDialogueUnavailable, derr)
	}

	opts := domain.AppendOptions{}
	if len(session.Messages)+1 > 1 {
		first := session.FirstUserMessage()
		if first == nil {
			first = out.UserMessage
		}
		opts.Title = domain.DeriveTitle(first.Content)
	}

	if err := s.store.Append(ctx, session.ID, out.UserMessage, opts); err != nil {
		log.Error("failed to persist user message after dialogue failure", "error", err)
		out.PersistErr = fmt.Errorf("%w: user message: %v", domain.ErrPersist, err)
	} else if opts.Title != "" {
		out.Title = opts.Title
	}

	out.LocalFallback = domain.NewAgentText(apologyText, s.now())
}

// Timeline returns a session with its full message log.
func (s *Service) Timeline(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to get session",
			"session_id", id, "error", err)
		return nil, err
	}
	return session, nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *Service) ListSessions(ctx context.Context, ownerID domain.OwnerID, limit int) ([]*domain.Session, error) {
	sessions, err := s.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list sessions",
			"owner_id", ownerID, "error", err)
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session permanently.
func (s *Service) DeleteSession(ctx context.Context, id domain.SessionID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to delete session",
			"session_id", id, "error", err)
		return err
	}
	return nil
}
