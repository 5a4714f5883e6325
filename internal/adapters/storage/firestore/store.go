package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/edustudy/edustudy-agent/internal/domain"
)

// Store persists sessions in a single "chats" collection. Each record
// carries the full message log inline, so one read returns a complete
// session and append is a read-modify-write on one document.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project
// (EDUSTUDY_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) chatsCol() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

func (s *Store) chatDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.chatsCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type chatDoc struct {
	OwnerID        string       `firestore:"owner_id"`
	Title          string       `firestore:"title"`
	ConversationID string       `firestore:"conversation_id"`
	Messages       []messageDoc `firestore:"messages"`
	MessageCount   int          `firestore:"message_count"`
	CreatedAt      time.Time    `firestore:"created_at"`
	UpdatedAt      time.Time    `firestore:"updated_at"`
}

type messageDoc struct {
	ID        string    `firestore:"id"`
	Kind      string    `firestore:"kind"`
	Sender    string    `firestore:"sender"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`

	Question string   `firestore:"question,omitempty"`
	Options  []string `firestore:"options,omitempty"`

	LessonTitle string `firestore:"lesson_title,omitempty"`
	LessonBody  string `firestore:"lesson_body,omitempty"`

	Prompt  string   `firestore:"prompt,omitempty"`
	Choices []string `firestore:"choices,omitempty"`
}

func toMessageDoc(m *domain.Message) messageDoc {
	doc := messageDoc{
		ID:        string(m.ID),
		Kind:      string(m.Kind),
		Sender:    string(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Quiz != nil {
		doc.Question = m.Quiz.Question
		doc.Options = m.Quiz.Options
	}
	if m.Lesson != nil {
		doc.LessonTitle = m.Lesson.Title
		doc.LessonBody = m.Lesson.Content
	}
	if m.Interactive != nil {
		doc.Prompt = m.Interactive.Prompt
		doc.Choices = m.Interactive.Choices
	}
	return doc
}

func fromMessageDoc(doc messageDoc) *domain.Message {
	m := &domain.Message{
		ID:        domain.MessageID(doc.ID),
		Kind:      domain.MessageKind(doc.Kind),
		Sender:    domain.Sender(doc.Sender),
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
	switch m.Kind {
	case domain.KindQuiz:
		m.Quiz = &domain.QuizPayload{Question: doc.Question, Options: doc.Options}
	case domain.KindLesson:
		m.Lesson = &domain.LessonPayload{Title: doc.LessonTitle, Content: doc.LessonBody}
	case domain.KindInteractive:
		m.Interactive = &domain.InteractivePayload{Prompt: doc.Prompt, Choices: doc.Choices}
	}
	return m
}

func fromChatDoc(id domain.SessionID, doc chatDoc) *domain.Session {
	msgs := make([]*domain.Message, 0, len(doc.Messages))
	for _, md := range doc.Messages {
		msgs = append(msgs, fromMessageDoc(md))
	}
	return &domain.Session{
		ID:             id,
		OwnerID:        domain.OwnerID(doc.OwnerID),
		Title:          doc.Title,
		ConversationID: doc.ConversationID,
		Messages:       msgs,
		MessageCount:   doc.MessageCount,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) Create(ctx context.Context, ownerID domain.OwnerID, title string) (domain.SessionID, error) {
	now := time.Now()
	doc := chatDoc{
		OwnerID:      string(ownerID),
		Title:        title,
		Messages:     []messageDoc{},
		MessageCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ref := s.chatsCol().NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return "", fmt.Errorf("firestore Create: %w", err)
	}
	return domain.SessionID(ref.ID), nil
}

// Append does a read-modify-write without a transaction; single-writer
// per session is guaranteed by the orchestrator's per-session lock.
func (s *Store) Append(ctx context.Context, id domain.SessionID, msg *domain.Message, opts domain.AppendOptions) error {
	snap, err := s.chatDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return fmt.Errorf("firestore Append get: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return fmt.Errorf("firestore Append decode: %w", err)
	}

	doc.Messages = append(doc.Messages, toMessageDoc(msg))

	update := map[string]interface{}{
		"messages":      doc.Messages,
		"message_count": len(doc.Messages),
		"updated_at":    time.Now(),
	}
	if opts.ConversationID != "" {
		update["conversation_id"] = opts.ConversationID
	}
	if opts.Title != "" {
		update["title"] = opts.Title
	}

	if _, err := s.chatDoc(id).Set(ctx, update, firestore.MergeAll); err != nil {
		return fmt.Errorf("firestore Append set: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.chatDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}
	return fromChatDoc(id, doc), nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID domain.OwnerID, limit int) ([]*domain.Session, error) {
	q := s.chatsCol().Where("owner_id", "==", string(ownerID)).OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListByOwner: %w", err)
		}

		var doc chatDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode chatDoc: %w", err)
		}
		out = append(out, fromChatDoc(domain.SessionID(snap.Ref.ID), doc))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id domain.SessionID) error {
	if _, err := s.chatDoc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore Delete: %w", err)
	}
	return nil
}
