package domain

import "context"

// TurnResult is one normalized engine response: zero or more agent
// messages plus the continuation id to use on the session's next turn.
type TurnResult struct {
	Messages       []*Message
	ConversationID string
}

// DialogueClient talks to the external reply engine. conversationID may
// be empty on a session's first turn; the client opens a new external
// conversation in that case.
type DialogueClient interface {
	Send(ctx context.Context, text string, conversationID string) (*TurnResult, error)
}

// AppendOptions carries the session fields an append conditionally
// updates. Empty values leave the stored field untouched.
type AppendOptions struct {
	ConversationID string
	Title          string
}

// SessionStore defines session persistence. Append preserves call order
// as log order for a single caller; single-writer-per-session is
// enforced upstream.
type SessionStore interface {
	Create(ctx context.Context, ownerID OwnerID, title string) (SessionID, error)
	Append(ctx context.Context, id SessionID, msg *Message, opts AppendOptions) error
	Get(ctx context.Context, id SessionID) (*Session, error)
	ListByOwner(ctx context.Context, ownerID OwnerID, limit int) ([]*Session, error)
	Delete(ctx context.Context, id SessionID) error
}
