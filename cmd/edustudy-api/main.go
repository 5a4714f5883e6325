package main

import (
	"context"
	"log"
	"net/http"

	"github.com/edustudy/edustudy-agent/internal/adapters/dialogue"
	httpadapter "github.com/edustudy/edustudy-agent/internal/adapters/http"
	firestorestore "github.com/edustudy/edustudy-agent/internal/adapters/storage/firestore"
	memstore "github.com/edustudy/edustudy-agent/internal/adapters/storage/memory"
	"github.com/edustudy/edustudy-agent/internal/app/chat"
	"github.com/edustudy/edustudy-agent/internal/config"
	"github.com/edustudy/edustudy-agent/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	var (
		dialogueClient domain.DialogueClient
		err            error
	)

	switch cfg.DialogueBackend {
	case "voiceflow":
		log.Println("[DIALOGUE] Using Voiceflow client")
		dialogueClient, err = dialogue.NewVoiceflowClient(cfg.VoiceflowAPIKey, cfg.VoiceflowProject, cfg.VoiceflowBaseURL)
		if err != nil {
			log.Fatalf("error initializing Voiceflow client: %v", err)
		}
	case "gemini":
		log.Println("[DIALOGUE] Using Gemini client")
		dialogueClient, err = dialogue.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
	default:
		log.Println("[DIALOGUE] Using MOCK client")
		dialogueClient = dialogue.NewMockClient()
	}

	var sessionStore domain.SessionStore

	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}
		sessionStore = fsStore

	default:
		log.Println("[STORE] Using in-memory storage")
		sessionStore = memstore.NewSessionStore()
	}

	svc := chat.NewService(dialogueClient, sessionStore)

	handler := httpadapter.NewServer(svc)

	port := ":" + cfg.Port
	log.Println("EduStudy API listening on port:", port)
	if err := http.ListenAndServe(port, handler); err != nil {
		log.Fatal(err)
	}
}
