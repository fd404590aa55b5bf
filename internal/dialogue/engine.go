// Package dialogue turns transcribed caller text into an ordered stream of
// speakable reply segments. It owns the per-call conversation transcript,
// streams completions from the model provider, and runs the tool-calling
// sub-loop.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/voxhall/callagent/internal/metrics"
	"github.com/voxhall/callagent/internal/trace"
)

const (
	finishReasonStop      = "stop"
	finishReasonToolCalls = "tool_calls"

	defaultMaxToolRounds = 5
)

// Config holds per-call engine settings.
type Config struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	// MaxToolRounds caps tool-call recursion within one interaction.
	MaxToolRounds int
	Registry      *Registry
	Tracer        *trace.Tracer
}

// Engine drives the conversation for a single call. All submissions for a
// call are serialized by the caller; the transcript lock only guards
// concurrent reads from inspection endpoints.
type Engine struct {
	client   openai.Client
	cfg      Config
	registry *Registry

	mu         sync.Mutex
	transcript []Message
}

// New creates an engine seeded with the system instruction.
func New(client openai.Client, cfg Config) *Engine {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	return &Engine{
		client:     client,
		cfg:        cfg,
		registry:   cfg.Registry,
		transcript: []Message{{Role: RoleSystem, Text: cfg.SystemPrompt}},
	}
}

// BindCallContext records the call identifiers in the conversation so the
// model can pass them to tools (for example a call transfer).
func (e *Engine) BindCallContext(callSID, streamSID string) {
	e.append(Message{Role: RoleSystem, Text: fmt.Sprintf("callSid: %s streamSid: %s", callSID, streamSID)})
}

// Transcript returns a copy of the conversation so far.
func (e *Engine) Transcript() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// turnState tracks one interaction across tool rounds.
type turnState struct {
	interaction int
	runID       string
	nextIndex   int
	parts       []string
}

// SubmitUserText appends the caller's text to the transcript and streams the
// model's reply, emitting each segment as soon as it closes. Tool rounds
// continue under the same interaction until the model produces plain content.
// On success exactly one assistant message is committed and its text
// returned; a stream error commits nothing.
func (e *Engine) SubmitUserText(ctx context.Context, text string, interaction int, runID string, emit SegmentHandler) (string, error) {
	e.append(Message{Role: RoleUser, Text: text})

	t := &turnState{interaction: interaction, runID: runID}
	for round := 0; ; round++ {
		if round >= e.cfg.MaxToolRounds {
			metrics.Errors.WithLabelValues("dialogue", "tool_rounds").Inc()
			return "", fmt.Errorf("interaction %d: tool rounds exceeded %d", interaction, e.cfg.MaxToolRounds)
		}
		done, err := e.streamOnce(ctx, t, emit)
		if err != nil {
			return "", err
		}
		if done {
			break
		}
	}

	reply := replyText(t.parts)
	e.append(Message{Role: RoleAssistant, Text: reply})
	return reply, nil
}

// replyText reconstructs the full reply from the indexed segments, in index
// order. Tool announcements carry no index and are excluded.
func replyText(parts []string) string {
	return strings.Join(parts, " ")
}

// streamOnce runs one streamed completion over the current transcript.
// Returns done=false when the model chose a tool and the conversation should
// be resubmitted.
func (e *Engine) streamOnce(ctx context.Context, t *turnState, emit SegmentHandler) (bool, error) {
	start := time.Now()

	stream := e.client.Chat.Completions.NewStreaming(ctx, e.buildParams())
	defer stream.Close()

	var seg segmenter
	var toolID, toolName, toolArgs string
	finishReason := ""

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			for _, s := range seg.Add(choice.Delta.Content) {
				e.emitIndexed(t, s, emit)
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			if tc.ID != "" {
				toolID = tc.ID
			}
			if tc.Function.Name != "" {
				toolName = tc.Function.Name
			}
			toolArgs += tc.Function.Arguments
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	if err := stream.Err(); err != nil {
		metrics.Errors.WithLabelValues("dialogue", "stream").Inc()
		e.cfg.Tracer.RecordSpan(t.runID, "completion", start,
			float64(time.Since(start).Milliseconds()), "", "", "error", err.Error())
		return false, fmt.Errorf("completion stream: %w", err)
	}

	if rest := seg.Flush(); rest != "" {
		e.emitIndexed(t, rest, emit)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("completion").Observe(latency.Seconds())
	e.cfg.Tracer.RecordSpan(t.runID, "completion", start,
		float64(latency.Milliseconds()), "", replyText(t.parts), "ok", "")

	if finishReason == finishReasonToolCalls && toolName != "" {
		e.runTool(ctx, t, toolID, toolName, toolArgs, emit)
		return false, nil
	}
	return true, nil
}

// runTool announces the tool, invokes it, and appends the decision and result
// to the transcript. Tool failures become error text fed back to the model so
// the conversation can recover; they never abort the call.
func (e *Engine) runTool(ctx context.Context, t *turnState, toolID, toolName, toolArgs string, emit SegmentHandler) {
	start := time.Now()
	metrics.ToolCalls.WithLabelValues(toolName).Inc()

	emit(Segment{Interaction: t.interaction, Text: e.registry.Say(toolName)})

	result := ""
	status, errMsg := "ok", ""

	args, err := ParseArguments(toolArgs)
	if err != nil {
		slog.Warn("tool argument parse failed", "tool", toolName, "args", toolArgs, "error", err)
		metrics.Errors.WithLabelValues("tool", "parse").Inc()
		result = "error: " + err.Error()
		status, errMsg = "error", err.Error()
	} else {
		result, err = e.registry.Invoke(ctx, toolName, args)
		if err != nil {
			slog.Warn("tool invocation failed", "tool", toolName, "error", err)
			metrics.Errors.WithLabelValues("tool", "invoke").Inc()
			result = "error: " + err.Error()
			status, errMsg = "error", err.Error()
		}
	}

	e.append(Message{Role: RoleAssistant, Tool: toolName, toolCallID: toolID, toolArgs: toolArgs})
	e.append(Message{Role: RoleTool, Tool: toolName, Text: result, toolCallID: toolID})

	e.cfg.Tracer.RecordSpan(t.runID, "tool", start,
		float64(time.Since(start).Milliseconds()), toolName+" "+toolArgs, result, status, errMsg)
}

func (e *Engine) emitIndexed(t *turnState, text string, emit SegmentHandler) {
	idx := t.nextIndex
	t.nextIndex++
	t.parts = append(t.parts, text)
	emit(Segment{Interaction: t.interaction, Index: &idx, Text: text})
}

func (e *Engine) append(m Message) {
	e.mu.Lock()
	e.transcript = append(e.transcript, m)
	e.mu.Unlock()
}

func (e *Engine) buildParams() openai.ChatCompletionNewParams {
	e.mu.Lock()
	transcript := e.transcript
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, toParam(m))
	}
	e.mu.Unlock()

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(e.cfg.Model),
		Messages:    messages,
		Temperature: param.NewOpt(e.cfg.Temperature),
	}
	if e.cfg.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(e.cfg.MaxTokens)
	}
	for _, t := range e.registry.Tools() {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return params
}

func toParam(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Text)
	case RoleUser:
		return openai.UserMessage(m.Text)
	case RoleTool:
		return openai.ToolMessage(m.Text, m.toolCallID)
	default:
		if m.toolCallID != "" {
			return openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: m.toolCallID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      m.Tool,
								Arguments: m.toolArgs,
							},
						},
					}},
				},
			}
		}
		return openai.AssistantMessage(m.Text)
	}
}
