package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/voxhall/callagent/internal/call"
	"github.com/voxhall/callagent/internal/dialogue"
	"github.com/voxhall/callagent/internal/speechcache"
	"github.com/voxhall/callagent/internal/stt"
	"github.com/voxhall/callagent/internal/trace"
	"github.com/voxhall/callagent/internal/tts"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()
	if cfg.openaiAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	openaiClient := openai.NewClient(option.WithAPIKey(cfg.openaiAPIKey))

	// Speech cache: Redis when configured, in-process otherwise.
	var cache speechcache.Store
	if cfg.redisURL != "" {
		rds := speechcache.NewRedis(speechcache.RedisOptions{
			Addr:     cfg.redisURL,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
			PoolSize: cfg.ttsPoolSize,
			TTL:      cfg.cacheTTL,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			slog.Warn("redis unreachable, using in-process cache", "error", err)
			cache = speechcache.NewMemory()
		} else {
			cache = rds
		}
		cancel()
	} else {
		cache = speechcache.NewMemory()
	}
	defer cache.Close()

	// TTS backend selection.
	var backend tts.Backend
	switch cfg.ttsEngine {
	case "elevenlabs":
		if cfg.elevenlabsAPIKey == "" {
			slog.Error("ELEVENLABS_API_KEY is required for TTS_ENGINE=elevenlabs")
			os.Exit(1)
		}
		httpClient := tts.NewPooledHTTPClient(cfg.ttsPoolSize, 30*time.Second)
		backend = tts.NewElevenLabsBackend(cfg.elevenlabsAPIKey, cfg.elevenlabsVoiceID, cfg.elevenlabsModelID, "", httpClient)
	default:
		backend = tts.NewOpenAIBackend(openaiClient, cfg.openaiTTSModel, cfg.openaiTTSVoice)
	}
	synth := tts.NewSynthesizer(backend, cache)

	// Trace store is optional; calls run untraced without it.
	var store *trace.Store
	if cfg.traceDBURL != "" {
		var err error
		store, err = trace.Open(cfg.traceDBURL)
		if err != nil {
			slog.Warn("trace store unavailable, tracing disabled", "error", err)
		} else {
			defer store.Close()
			slog.Info("tracing enabled")
		}
	}

	registry := newToolRegistry(cfg)

	handler := call.NewHandler(call.HandlerConfig{
		MaxConcurrentCalls: cfg.maxConcurrentCalls,
		Greeting:           cfg.greeting,
		BargeInMinChars:    cfg.bargeInMinChars,
		MarkGrace:          cfg.markGrace,
		NewEngine: func(tracer *trace.Tracer) *dialogue.Engine {
			return dialogue.New(openaiClient, dialogue.Config{
				Model:        cfg.openaiModel,
				SystemPrompt: cfg.systemPrompt,
				Temperature:  cfg.temperature,
				MaxTokens:    int64(cfg.maxTokens),
				Registry:     registry,
				Tracer:       tracer,
			})
		},
		NewSTT: func() (stt.Client, error) {
			return stt.NewDeepgramClient(context.Background(), stt.DeepgramConfig{
				APIKey:     cfg.deepgramAPIKey,
				URL:        cfg.deepgramURL,
				Model:      cfg.deepgramModel,
				Language:   "en-US",
				Encoding:   "mulaw",
				SampleRate: 8000,
			})
		},
		Synth: synth,
		Store: store,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{cfg: cfg, wsHandler: handler, store: store})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("callagent starting", "addr", addr, "tts_engine", synth.Engine(), "max_concurrent", cfg.maxConcurrentCalls)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("callagent stopped")
}
