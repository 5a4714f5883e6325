package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/edustudy/edustudy-agent/internal/domain"
	"github.com/edustudy/edustudy-agent/internal/observability"
)

// VoiceflowClient talks to the Voiceflow general-runtime interact API.
// Each call carries the utterance plus a continuation id; the engine's
// heterogeneous reply items are normalized into domain Messages here, so
// the rest of the app never sees the raw wire shape.
type VoiceflowClient struct {
	apiKey    string
	projectID string
	baseURL   string
	http      *http.Client
	now       func() time.Time
}

func NewVoiceflowClient(apiKey, projectID, baseURL string) (*VoiceflowClient, error) {
	if apiKey == "" || projectID == "" {
		return nil, fmt.Errorf("voiceflow api key and project id are required")
	}
	if baseURL == "" {
		baseURL = "https://general-runtime.voiceflow.com"
	}

	return &VoiceflowClient{
		apiKey:    apiKey,
		projectID: projectID,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}, nil
}

type interactRequest struct {
	Action interactAction `json:"action"`
	Config interactConfig `json:"config"`
}

type interactAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type interactConfig struct {
	TTS       bool `json:"tts"`
	StripSSML bool `json:"stripSSML"`
}

// replyItem is one heterogeneous item from the engine: a kind tag plus a
// free-form payload, sometimes with a bare text field instead.
type replyItem struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Send implements domain.DialogueClient.
func (c *VoiceflowClient) Send(ctx context.Context, text string, conversationID string) (*domain.TurnResult, error) {
	// No continuation id means a fresh external conversation; the engine
	// keys its state on the user segment of the URL.
	usedID := conversationID
	if usedID == "" {
		usedID = strconv.FormatInt(c.now().UnixNano(), 10)
	}

	endpoint := fmt.Sprintf("%s/state/%s/user/%s/interact",
		c.baseURL, url.PathEscape(c.projectID), url.PathEscape(usedID))

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal interact payload: %w", err)
	}

	body, err := json.Marshal(interactRequest{
		Action: interactAction{Type: "text", Payload: payload},
		Config: interactConfig{TTS: false, StripSSML: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal interact request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build interact request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDialogueUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrDialogueUnavailable, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Raw status and body stay in the logs for diagnostics; callers
		// only ever see the sentinel.
		observability.LoggerFromContext(ctx).Error("voiceflow interact failed",
			"status", res.StatusCode,
			"body", string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrDialogueUnavailable, res.StatusCode)
	}

	var items []replyItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrDialogueUnavailable, err)
	}

	return &domain.TurnResult{
		Messages:       c.mapItems(items),
		ConversationID: resolveConversationID(items, res.Header, usedID),
	}, nil
}

// resolveConversationID picks the continuation id for the next turn, in
// priority order: a payload-embedded id (any item whose object payload
// names a conversationId, conversation/session metadata items included),
// the conversation-id header, the x-conversation-id header, then the id
// used for this call. The payload heuristic can misfire if an unrelated
// item happens to carry that field name.
func resolveConversationID(items []replyItem, headers http.Header, usedID string) string {
	for _, item := range items {
		if len(item.Payload) == 0 {
			continue
		}
		var payload struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			continue
		}
		if payload.ConversationID != "" {
			return payload.ConversationID
		}
	}

	if v := headers.Get("conversation-id"); v != "" {
		return v
	}
	if v := headers.Get("x-conversation-id"); v != "" {
		return v
	}
	return usedID
}

// mapItems turns reply items into agent Messages. Items of unknown kind
// fall back to a plain text message carrying whatever raw text exists.
func (c *VoiceflowClient) mapItems(items []replyItem) []*domain.Message {
	var out []*domain.Message
	now := c.now()

	for _, item := range items {
		switch item.Type {
		case "conversation", "session":
			// Metadata carriers, consumed by resolveConversationID.
			continue

		case "text":
			var p struct {
				Message string `json:"message"`
			}
			content := item.Text
			if len(item.Payload) > 0 {
				if err := json.Unmarshal(item.Payload, &p); err == nil && p.Message != "" {
					content = p.Message
				}
			}
			out = append(out, domain.NewAgentText(content, now))

		case "quiz":
			var p struct {
				Question string   `json:"question"`
				Options  []string `json:"options"`
			}
			if len(item.Payload) == 0 || json.Unmarshal(item.Payload, &p) != nil {
				out = append(out, fallbackText(item, now))
				continue
			}
			out = append(out, &domain.Message{
				ID:        domain.NewMessageID(),
				Kind:      domain.KindQuiz,
				Sender:    domain.SenderAgent,
				Content:   p.Question,
				CreatedAt: now,
				Quiz:      &domain.QuizPayload{Question: p.Question, Options: p.Options},
			})

		case "lesson":
			var p struct {
				Title   string `json:"title"`
				Content string `json:"content"`
			}
			if len(item.Payload) == 0 || json.Unmarshal(item.Payload, &p) != nil {
				out = append(out, fallbackText(item, now))
				continue
			}
			out = append(out, &domain.Message{
				ID:        domain.NewMessageID(),
				Kind:      domain.KindLesson,
				Sender:    domain.SenderAgent,
				Content:   p.Title,
				CreatedAt: now,
				Lesson:    &domain.LessonPayload{Title: p.Title, Content: p.Content},
			})

		case "interactive":
			var p struct {
				Prompt  string   `json:"prompt"`
				Choices []string `json:"choices"`
			}
			if len(item.Payload) == 0 || json.Unmarshal(item.Payload, &p) != nil {
				out = append(out, fallbackText(item, now))
				continue
			}
			out = append(out, &domain.Message{
				ID:          domain.NewMessageID(),
				Kind:        domain.KindInteractive,
				Sender:      domain.SenderAgent,
				Content:     p.Prompt,
				CreatedAt:   now,
				Interactive: &domain.InteractivePayload{Prompt: p.Prompt, Choices: p.Choices},
			})

		default:
			out = append(out, fallbackText(item, now))
		}
	}

	return out
}

func fallbackText(item replyItem, now time.Time) *domain.Message {
	content := item.Text
	if content == "" {
		content = "Unsupported message type."
	}
	return domain.NewAgentText(content, now)
}
