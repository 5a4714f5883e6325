package dialogue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/edustudy/edustudy-agent/internal/domain"
)

const tutorSystemPrompt = `You are EduStudy, a patient AI study assistant.
Answer the student's question clearly and concisely, and suggest one
follow-up question they could explore next.`

// GeminiClient is an alternate dialogue backend over Vertex AI. Unlike
// Voiceflow it holds no server-side conversation state, so the
// continuation id is manufactured on the first turn and echoed after.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	now       func() time.Time
}

func NewGeminiClient(ctx context.Context, projectID, location, modelName string) (*GeminiClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("project id and location are required for the gemini backend")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		now:       time.Now,
	}, nil
}

// Send implements domain.DialogueClient.
func (g *GeminiClient) Send(ctx context.Context, text string, conversationID string) (*domain.TurnResult, error) {
	usedID := conversationID
	if usedID == "" {
		usedID = strconv.FormatInt(g.now().UnixNano(), 10)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(tutorSystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDialogueUnavailable, err)
	}

	reply := res.Text()
	if reply == "" {
		// An empty list is legal; the orchestrator synthesizes its own
		// fallback message.
		return &domain.TurnResult{ConversationID: usedID}, nil
	}

	return &domain.TurnResult{
		Messages:       []*domain.Message{domain.NewAgentText(reply, g.now())},
		ConversationID: usedID,
	}, nil
}
