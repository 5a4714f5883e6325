package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string
type OwnerID string
type MessageID string

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// MessageKind is a closed set; adding a kind requires a new mapping rule
// in the dialogue adapter.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindQuiz        MessageKind = "quiz"
	KindLesson      MessageKind = "lesson"
	KindInteractive MessageKind = "interactive"
)

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type Timestamp = time.Time
