package domain

const titleMaxLen = 50

// Session is a persisted conversation between one owner and the dialogue
// engine. Messages is append-only; insertion order is conversational order.
type Session struct {
	ID      SessionID
	OwnerID OwnerID
	Title   string

	// ConversationID is the continuation token handed to the engine on
	// the next turn. Empty until the first successful exchange; once set
	// it is only ever replaced, never cleared.
	ConversationID string

	Messages     []*Message
	MessageCount int

	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// FirstUserMessage returns the earliest user-authored message, or nil.
func (s *Session) FirstUserMessage() *Message {
	for _, m := range s.Messages {
		if m.Sender == SenderUser {
			return m
		}
	}
	return nil
}

// DeriveTitle truncates a first user message into a session title:
// at most 50 characters, with "..." appended when truncation happened.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	return content
}
