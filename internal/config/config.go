package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress      string
	AuthPassword     string
	GeminiAPIKey     string
	GeminiModelID    string
	DeepgramAPIKey   string
	DeepgramTTSModel string
	AssemblyAIKey    string
	TranscriptDir    string
	AnalysisCacheDir string
	LogJSON          bool
	LogDebug         bool
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	authPassword := os.Getenv("AUTH_PASSWORD")
	if authPassword == "" {
		log.Println("Warning: AUTH_PASSWORD not set - session endpoints are unauthenticated")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	geminiModel := os.Getenv("GEMINI_MODEL_ID")
	if geminiModel == "" {
		geminiModel = "gemini-2.0-flash"
	}
	if geminiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set - question generation and analysis will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}
	ttsModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if ttsModel == "" {
		ttsModel = "aura-2-thalia-en"
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}

	transcriptDir := os.Getenv("TRANSCRIPT_DIR")
	if transcriptDir == "" {
		transcriptDir = "transcripts"
	}
	cacheDir := os.Getenv("ANALYSIS_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "analysis_cache"
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:      addr,
		AuthPassword:     authPassword,
		GeminiAPIKey:     geminiKey,
		GeminiModelID:    geminiModel,
		DeepgramAPIKey:   deepgramKey,
		DeepgramTTSModel: ttsModel,
		AssemblyAIKey:    assemblyAIKey,
		TranscriptDir:    transcriptDir,
		AnalysisCacheDir: cacheDir,
		LogJSON:          boolEnv("LOG_JSON"),
		LogDebug:         boolEnv("LOG_DEBUG"),
	}
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
