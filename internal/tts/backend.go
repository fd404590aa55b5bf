package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go/v2"

	"github.com/voxhall/callagent/internal/audio"
)

// Backend produces audio for one text segment. Name namespaces the speech
// cache so different engines never share entries.
type Backend interface {
	Name() string
	SynthesizeAudio(ctx context.Context, text string) ([]byte, audio.Format, error)
}

// --- OpenAI speech backend (api.openai.com/v1/audio/speech, returns WAV) ---

type openaiBackend struct {
	client openai.Client
	model  string
	voice  string
}

// NewOpenAIBackend synthesizes through the OpenAI speech API.
func NewOpenAIBackend(client openai.Client, model, voice string) Backend {
	return &openaiBackend{client: client, model: model, voice: voice}
}

func (o *openaiBackend) Name() string { return "openai" }

func (o *openaiBackend) SynthesizeAudio(ctx context.Context, text string) ([]byte, audio.Format, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, "", fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("openai speech read: %w", err)
	}
	return data, audio.FormatWAV, nil
}

// --- ElevenLabs backend (cloud API, asked for transport-native ulaw_8000) ---

type elevenlabsBackend struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

// NewElevenLabsBackend synthesizes through the ElevenLabs streaming API.
func NewElevenLabsBackend(apiKey, voiceID, modelID, baseURL string, client *http.Client) Backend {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	return &elevenlabsBackend{apiKey: apiKey, voiceID: voiceID, modelID: modelID, baseURL: baseURL, client: client}
}

func (e *elevenlabsBackend) Name() string { return "elevenlabs" }

func (e *elevenlabsBackend) SynthesizeAudio(ctx context.Context, text string) ([]byte, audio.Format, error) {
	body, err := json.Marshal(struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, "", fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=ulaw_8000", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("elevenlabs status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs read: %w", err)
	}
	return data, audio.FormatULaw8000, nil
}
