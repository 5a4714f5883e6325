package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edustudy/edustudy-agent/internal/app/chat"
	"github.com/edustudy/edustudy-agent/internal/domain"
)

type Server struct {
	svc *chat.Service
}

func NewServer(svc *chat.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	// /turns           → POST: send one conversational turn
	// /chats           → GET: list an owner's chats
	// /chats/{id}      → GET: chat + messages, DELETE: remove chat
	mux.HandleFunc("/turns", s.handleTurns)
	mux.HandleFunc("/chats", s.handleChats)
	mux.HandleFunc("/chats/", s.handleChatWithID)
	mux.HandleFunc("/healthz", s.handleHealthz)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sendTurnRequest struct {
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Quiz        *quizResponse        `json:"quiz,omitempty"`
	Lesson      *lessonResponse      `json:"lesson,omitempty"`
	Interactive *interactiveResponse `json:"interactive,omitempty"`
}

type quizResponse struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type lessonResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type interactiveResponse struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

type sendTurnResponse struct {
	SessionID      string `json:"session_id"`
	Created        bool   `json:"created"`
	Title          string `json:"title"`
	ConversationID string `json:"conversation_id,omitempty"`

	UserMessage   messageResponse   `json:"user_message"`
	AgentMessages []messageResponse `json:"agent_messages"`
	LocalFallback *messageResponse  `json:"local_fallback,omitempty"`

	DialogueError string `json:"dialogue_error,omitempty"`
	PersistError  string `json:"persist_error,omitempty"`
}

type sessionSummaryResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type getChatResponse struct {
	Session  sessionSummaryResponse `json:"session"`
	Messages []messageResponse      `json:"messages"`
}

type listChatsResponse struct {
	Sessions []sessionSummaryResponse `json:"sessions"`
}

func toMessageResponse(m *domain.Message) messageResponse {
	out := messageResponse{
		ID:        string(m.ID),
		Kind:      string(m.Kind),
		Sender:    string(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Quiz != nil {
		out.Quiz = &quizResponse{Question: m.Quiz.Question, Options: m.Quiz.Options}
	}
	if m.Lesson != nil {
		out.Lesson = &lessonResponse{Title: m.Lesson.Title, Content: m.Lesson.Content}
	}
	if m.Interactive != nil {
		out.Interactive = &interactiveResponse{Prompt: m.Interactive.Prompt, Choices: m.Interactive.Choices}
	}
	return out
}

func toSessionSummary(s *domain.Session) sessionSummaryResponse {
	return sessionSummaryResponse{
		ID:             string(s.ID),
		OwnerID:        string(s.OwnerID),
		Title:          s.Title,
		ConversationID: s.ConversationID,
		MessageCount:   s.MessageCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req sendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.OwnerID == "" {
		badRequest(w, "owner_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text must not be blank")
		return
	}

	out, err := s.svc.SendTurn(r.Context(), chat.SendTurnInput{
		SessionID: domain.SessionID(req.SessionID),
		OwnerID:   domain.OwnerID(req.OwnerID),
		Text:      req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, domain.ErrSessionCreate):
			writeError(w, http.StatusInternalServerError, "could not create session")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	res := sendTurnResponse{
		SessionID:      string(out.SessionID),
		Created:        out.Created,
		Title:          out.Title,
		ConversationID: out.ConversationID,
		UserMessage:    toMessageResponse(out.UserMessage),
		AgentMessages:  make([]messageResponse, 0, len(out.AgentMessages)),
	}
	for _, m := range out.AgentMessages {
		res.AgentMessages = append(res.AgentMessages, toMessageResponse(m))
	}
	if out.LocalFallback != nil {
		fb := toMessageResponse(out.LocalFallback)
		res.LocalFallback = &fb
	}
	if out.DialogueErr != nil {
		res.DialogueError = "dialogue engine unavailable"
	}
	if out.PersistErr != nil {
		res.PersistError = "a message could not be persisted"
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		badRequest(w, "owner_id is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.svc.ListSessions(r.Context(), domain.OwnerID(ownerID), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res := listChatsResponse{Sessions: make([]sessionSummaryResponse, 0, len(sessions))}
	for _, sess := range sessions {
		res.Sessions = append(res.Sessions, toSessionSummary(sess))
	}
	writeJSON(w, http.StatusOK, res)
}

// /chats/{id}
func (s *Server) handleChatWithID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/chats/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetChat(w, r, domain.SessionID(id))
	case http.MethodDelete:
		s.handleDeleteChat(w, r, domain.SessionID(id))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.svc.Timeline(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res := getChatResponse{
		Session:  toSessionSummary(session),
		Messages: make([]messageResponse, 0, len(session.Messages)),
	}
	for _, m := range session.Messages {
		res.Messages = append(res.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
