package config

import (
	"log"
	"os"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	// Dialogue engine selection: "voiceflow", "gemini" or "mock".
	DialogueBackend string

	VoiceflowAPIKey  string
	VoiceflowProject string
	VoiceflowBaseURL string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory" or "firestore"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads all env vars and builds the config.
// Missing engine credentials are fatal at startup, not per-call errors.
func Load() *Config {
	modeStr := getEnv("EDUSTUDY_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	defaultBackend := "voiceflow"
	if mode == ModeLocal {
		defaultBackend = "mock"
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("EDUSTUDY_PORT", "8080"),

		DialogueBackend: getEnv("EDUSTUDY_DIALOGUE_BACKEND", defaultBackend),

		VoiceflowAPIKey:  getEnv("EDUSTUDY_VOICEFLOW_API_KEY", ""),
		VoiceflowProject: getEnv("EDUSTUDY_VOICEFLOW_PROJECT", ""),
		VoiceflowBaseURL: getEnv("EDUSTUDY_VOICEFLOW_BASE_URL", "https://general-runtime.voiceflow.com"),

		GCPProjectID: getEnv("EDUSTUDY_GCP_PROJECT", ""),
		GCPLocation:  getEnv("EDUSTUDY_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("EDUSTUDY_MODEL_NAME", "gemini-2.5-flash-lite"),

		StorageBackend: getEnv("EDUSTUDY_STORAGE_BACKEND", "memory"),
	}

	if cfg.DialogueBackend == "voiceflow" && (cfg.VoiceflowAPIKey == "" || cfg.VoiceflowProject == "") {
		log.Fatal("EDUSTUDY_VOICEFLOW_API_KEY and EDUSTUDY_VOICEFLOW_PROJECT must be set for the voiceflow backend")
	}
	if cfg.DialogueBackend == "gemini" && cfg.GCPProjectID == "" {
		log.Fatal("EDUSTUDY_GCP_PROJECT must be set for the gemini backend")
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("EDUSTUDY_GCP_PROJECT must be set for the firestore storage backend")
	}

	return cfg
}
