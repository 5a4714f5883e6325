package dialogue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/edustudy/edustudy-agent/internal/domain"
)

// MockClient echoes the utterance back, useful for local dev without
// engine credentials.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Send(ctx context.Context, text string, conversationID string) (*domain.TurnResult, error) {
	usedID := conversationID
	if usedID == "" {
		usedID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	reply := fmt.Sprintf("You said %q. What would you like to study next?", text)

	return &domain.TurnResult{
		Messages:       []*domain.Message{domain.NewAgentText(reply, time.Now())},
		ConversationID: usedID,
	}, nil
}
