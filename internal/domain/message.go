package domain

// QuizPayload carries a multiple-choice question.
type QuizPayload struct {
	Question string
	Options  []string
}

// LessonPayload carries a titled lesson body.
type LessonPayload struct {
	Title   string
	Content string
}

// InteractivePayload carries a prompt plus the choices offered to the user.
type InteractivePayload struct {
	Prompt  string
	Choices []string
}

// Message is one utterance in a session's log (user or agent).
// Immutable once created. Content is always set, whatever the kind, so
// plain display and title derivation never need the structured payload.
type Message struct {
	ID        MessageID
	Kind      MessageKind
	Sender    Sender
	Content   string
	CreatedAt Timestamp

	// Exactly one of these is non-nil for the matching non-text kind.
	Quiz        *QuizPayload
	Lesson      *LessonPayload
	Interactive *InteractivePayload
}

// NewUserText builds the user's side of a turn.
func NewUserText(content string, at Timestamp) *Message {
	return &Message{
		ID:        NewMessageID(),
		Kind:      KindText,
		Sender:    SenderUser,
		Content:   content,
		CreatedAt: at,
	}
}

// NewAgentText builds a plain agent reply.
func NewAgentText(content string, at Timestamp) *Message {
	return &Message{
		ID:        NewMessageID(),
		Kind:      KindText,
		Sender:    SenderAgent,
		Content:   content,
		CreatedAt: at,
	}
}
