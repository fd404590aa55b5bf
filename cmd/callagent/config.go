package main

import (
	"time"

	"github.com/voxhall/callagent/internal/env"
	"github.com/voxhall/callagent/internal/prompts"
)

type config struct {
	port   string
	server string

	openaiAPIKey string
	openaiModel  string
	temperature  float64
	maxTokens    int

	deepgramAPIKey string
	deepgramURL    string
	deepgramModel  string

	ttsEngine         string
	openaiTTSModel    string
	openaiTTSVoice    string
	elevenlabsAPIKey  string
	elevenlabsVoiceID string
	elevenlabsModelID string
	ttsPoolSize       int

	redisURL      string
	redisPassword string
	redisDB       int
	cacheTTL      time.Duration

	traceDBURL string

	greeting           string
	systemPrompt       string
	bargeInMinChars    int
	markGrace          time.Duration
	maxConcurrentCalls int
	transferNumber     string
}

func loadConfig() config {
	return config{
		port:   env.Str("PORT", "3000"),
		server: env.Str("SERVER", "localhost:3000"),

		openaiAPIKey: env.Str("OPENAI_API_KEY", ""),
		openaiModel:  env.Str("OPENAI_MODEL", "gpt-4-0125-preview"),
		temperature:  env.Float("OPENAI_TEMPERATURE", 0),
		maxTokens:    env.Int("OPENAI_MAX_TOKENS", 200),

		deepgramAPIKey: env.Str("DEEPGRAM_API_KEY", ""),
		deepgramURL:    env.Str("DEEPGRAM_URL", "wss://api.deepgram.com"),
		deepgramModel:  env.Str("DEEPGRAM_MODEL", "nova-2"),

		ttsEngine:         env.Str("TTS_ENGINE", "openai"),
		openaiTTSModel:    env.Str("OPENAI_TTS_MODEL", "tts-1"),
		openaiTTSVoice:    env.Str("OPENAI_TTS_VOICE", "alloy"),
		elevenlabsAPIKey:  env.Str("ELEVENLABS_API_KEY", ""),
		elevenlabsVoiceID: env.Str("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		elevenlabsModelID: env.Str("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5"),
		ttsPoolSize:       env.Int("TTS_POOL_SIZE", 20),

		redisURL:      env.Str("REDIS_URL", ""),
		redisPassword: env.Str("REDIS_PASSWORD", ""),
		redisDB:       env.Int("REDIS_DB", 0),
		cacheTTL:      env.MS("CACHE_TTL_MS", 24*time.Hour),

		traceDBURL: env.Str("TRACE_DB_URL", ""),

		greeting:           env.Str("GREETING", "Hello! How can I help you today?"),
		systemPrompt:       env.Str("SYSTEM_PROMPT", prompts.DefaultSystem),
		bargeInMinChars:    env.Int("BARGE_IN_MIN_CHARS", 5),
		markGrace:          env.MS("MARK_GRACE_MS", time.Second),
		maxConcurrentCalls: env.Int("MAX_CONCURRENT_CALLS", 10),
		transferNumber:     env.Str("TRANSFER_NUMBER", ""),
	}
}
