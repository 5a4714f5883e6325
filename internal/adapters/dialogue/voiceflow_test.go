package dialogue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edustudy/edustudy-agent/internal/adapters/dialogue"
	"github.com/edustudy/edustudy-agent/internal/domain"
)

type capturedRequest struct {
	path   string
	auth   string
	body   map[string]any
	called bool
}

// newEngine spins up a fake Voiceflow runtime returning the given items
// and headers.
func newEngine(t *testing.T, status int, items string, headers map[string]string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.called = true
			captured.path = r.URL.Path
			captured.auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(items))
	}))
}

func newClient(t *testing.T, baseURL string) *dialogue.VoiceflowClient {
	t.Helper()

	c, err := dialogue.NewVoiceflowClient("test-key", "proj-1", baseURL)
	if err != nil {
		t.Fatalf("NewVoiceflowClient failed: %v", err)
	}
	return c
}

func TestSendRequestShape(t *testing.T) {
	var captured capturedRequest
	srv := newEngine(t, http.StatusOK, `[]`, nil, &captured)
	defer srv.Close()

	c := newClient(t, srv.URL)
	if _, err := c.Send(context.Background(), "hello", "conv-9"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if captured.path != "/state/proj-1/user/conv-9/interact" {
		t.Fatalf("unexpected path %q", captured.path)
	}
	if captured.auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", captured.auth)
	}

	action, ok := captured.body["action"].(map[string]any)
	if !ok {
		t.Fatalf("missing action in body: %v", captured.body)
	}
	if action["type"] != "text" {
		t.Fatalf("unexpected action type %v", action["type"])
	}
	payload, _ := action["payload"].(map[string]any)
	if payload["text"] != "hello" {
		t.Fatalf("unexpected payload text %v", payload["text"])
	}
}

func TestSendManufacturesConversationID(t *testing.T) {
	var captured capturedRequest
	srv := newEngine(t, http.StatusOK, `[]`, nil, &captured)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if res.ConversationID == "" {
		t.Fatalf("expected a manufactured conversation id")
	}
	if !strings.HasSuffix(captured.path, "/user/"+res.ConversationID+"/interact") {
		t.Fatalf("manufactured id %q must be the one used on the wire, path %q",
			res.ConversationID, captured.path)
	}
}

func TestSendMapsItemKinds(t *testing.T) {
	items := `[
		{"type":"text","payload":{"message":"plain reply"}},
		{"type":"quiz","payload":{"question":"2+2?","options":["3","4"]}},
		{"type":"lesson","payload":{"title":"Fractions","content":"A fraction is..."}},
		{"type":"interactive","payload":{"prompt":"Pick a topic","choices":["math","physics"]}},
		{"type":"carousel","text":"cards here"},
		{"type":"visual"}
	]`
	srv := newEngine(t, http.StatusOK, items, nil, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "go", "conv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(res.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(res.Messages))
	}

	m := res.Messages
	if m[0].Kind != domain.KindText || m[0].Content != "plain reply" {
		t.Fatalf("text mapping wrong: %+v", m[0])
	}
	if m[1].Kind != domain.KindQuiz || m[1].Content != "2+2?" ||
		m[1].Quiz == nil || len(m[1].Quiz.Options) != 2 {
		t.Fatalf("quiz mapping wrong: %+v", m[1])
	}
	if m[2].Kind != domain.KindLesson || m[2].Content != "Fractions" ||
		m[2].Lesson == nil || m[2].Lesson.Content != "A fraction is..." {
		t.Fatalf("lesson mapping wrong: %+v", m[2])
	}
	if m[3].Kind != domain.KindInteractive || m[3].Content != "Pick a topic" ||
		m[3].Interactive == nil || len(m[3].Interactive.Choices) != 2 {
		t.Fatalf("interactive mapping wrong: %+v", m[3])
	}
	if m[4].Kind != domain.KindText || m[4].Content != "cards here" {
		t.Fatalf("unknown kind with text must fall back to it: %+v", m[4])
	}
	if m[5].Kind != domain.KindText || m[5].Content != "Unsupported message type." {
		t.Fatalf("unknown kind without text must use the placeholder: %+v", m[5])
	}

	for i, msg := range m {
		if msg.Sender != domain.SenderAgent {
			t.Fatalf("message %d must be agent-sent, got %s", i, msg.Sender)
		}
		if msg.ID == "" {
			t.Fatalf("message %d must get a fresh id", i)
		}
	}
}

func TestSendTextFallsBackToRawText(t *testing.T) {
	srv := newEngine(t, http.StatusOK, `[{"type":"text","text":"raw only"}]`, nil, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "go", "conv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Content != "raw only" {
		t.Fatalf("expected the raw text field, got %+v", res.Messages)
	}
}

func TestConversationIDPayloadBeatsHeader(t *testing.T) {
	items := `[{"type":"conversation","payload":{"conversationId":"from-payload"}}]`
	headers := map[string]string{"conversation-id": "from-header"}
	srv := newEngine(t, http.StatusOK, items, headers, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "go", "conv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if res.ConversationID != "from-payload" {
		t.Fatalf("payload id must win over the header, got %q", res.ConversationID)
	}
	// Metadata items never become chat messages.
	if len(res.Messages) != 0 {
		t.Fatalf("expected no messages from a metadata item, got %d", len(res.Messages))
	}
}

func TestConversationIDFromHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"primary header", map[string]string{"conversation-id": "abc"}, "abc"},
		{"alternate header", map[string]string{"x-conversation-id": "xyz"}, "xyz"},
		{"no id anywhere", nil, "conv"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newEngine(t, http.StatusOK, `[{"type":"text","text":"hi"}]`, tc.headers, nil)
			defer srv.Close()

			c := newClient(t, srv.URL)
			res, err := c.Send(context.Background(), "go", "conv")
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if res.ConversationID != tc.want {
				t.Fatalf("want %q, got %q", tc.want, res.ConversationID)
			}
		})
	}
}

func TestConversationIDFromAnyPayload(t *testing.T) {
	// An item of any kind whose payload carries conversationId wins over
	// the headers.
	items := `[{"type":"text","payload":{"message":"hi","conversationId":"embedded"}}]`
	headers := map[string]string{"conversation-id": "from-header"}
	srv := newEngine(t, http.StatusOK, items, headers, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "go", "conv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.ConversationID != "embedded" {
		t.Fatalf("want %q, got %q", "embedded", res.ConversationID)
	}
}

func TestSendEngineFailure(t *testing.T) {
	srv := newEngine(t, http.StatusBadGateway, `upstream broke`, nil, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	_, err := c.Send(context.Background(), "go", "conv")
	if err == nil {
		t.Fatalf("expected an error on a non-2xx status")
	}
	if !errors.Is(err, domain.ErrDialogueUnavailable) {
		t.Fatalf("expected ErrDialogueUnavailable, got %v", err)
	}
}

func TestSendEmptyReplyStaysEmpty(t *testing.T) {
	srv := newEngine(t, http.StatusOK, `[]`, nil, nil)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.Send(context.Background(), "go", "conv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// Synthesizing the fallback is the orchestrator's job, not the client's.
	if len(res.Messages) != 0 {
		t.Fatalf("expected an empty list, got %d messages", len(res.Messages))
	}
	if res.ConversationID != "conv" {
		t.Fatalf("want the outbound id echoed back, got %q", res.ConversationID)
	}
}
