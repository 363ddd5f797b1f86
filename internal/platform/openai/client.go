package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// Message is a chat-completions message. Tool results set Role="tool" and
// ToolCallID to the id of the call they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionOptions mirror the narrow surface the core needs.
type CompletionOptions struct {
	Temperature    *float64
	MaxTokens      int
	ResponseFormat map[string]any
	Tools          []map[string]any
	ToolChoice     any
}

// Client is the LLM/embedding API client used by the rest of the backend.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Structured outputs (json_schema or json_object).
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// Plain text.
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Full-control completion used by the chat surface.
	Complete(ctx context.Context, model string, messages []Message, opts CompletionOptions) (string, []ToolCall, error)

	// Stream output deltas; tool-call fragments are aggregated per index and
	// handed to onToolCall once complete. Returns the full text.
	StreamText(ctx context.Context, model string, messages []Message, opts CompletionOptions, onDelta func(delta string), onToolCall func(tc ToolCall)) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	embedDim   int
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	embed := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embed == "" {
		embed = "text-embedding-3-small"
	}
	embedDim := 1536
	if v := strings.TrimSpace(os.Getenv("EMBED_DIM")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			embedDim = parsed
		}
	}

	timeoutSec := 60
	if v := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 2
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		embedModel: embed,
		embedDim:   embedDim,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.embedModel,
		"input": inputs,
	}
	if c.embedDim > 0 && strings.Contains(c.embedModel, "text-embedding-3") {
		body["dimensions"] = c.embedDim
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/v1/embeddings", body, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	out := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	msgs := buildMessages(system, user)
	text, _, err := c.Complete(ctx, c.model, msgs, CompletionOptions{})
	return text, err
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	msgs := buildMessages(system, user)
	opts := CompletionOptions{}
	if schema != nil {
		opts.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		}
	} else {
		opts.ResponseFormat = map[string]any{"type": "json_object"}
	}
	text, _, err := c.Complete(ctx, c.model, msgs, opts)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse structured output: %w", err)
	}
	return out, nil
}

func (c *client) Complete(ctx context.Context, model string, messages []Message, opts CompletionOptions) (string, []ToolCall, error) {
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	applyOptions(body, opts)

	var parsed struct {
		Choices []struct {
			Message struct {
				Content   string     `json:"content"`
				ToolCalls []ToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/v1/chat/completions", body, &parsed); err != nil {
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("chat completion: empty choices")
	}
	msg := parsed.Choices[0].Message
	return msg.Content, msg.ToolCalls, nil
}

func (c *client) StreamText(ctx context.Context, model string, messages []Message, opts CompletionOptions, onDelta func(delta string), onToolCall func(tc ToolCall)) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
	applyOptions(body, opts)

	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("stream request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var full strings.Builder
	agg := newToolCallAggregator()

	err = streamSSE(resp.Body, func(_ string, data string) error {
		if data == "[DONE]" {
			return nil
		}
		var frame struct {
			Choices []struct {
				Delta struct {
					Content   string          `json:"content"`
					ToolCalls []toolCallDelta `json:"tool_calls"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if jsonErr := json.Unmarshal([]byte(data), &frame); jsonErr != nil {
			return nil // tolerate unknown frames
		}
		for _, ch := range frame.Choices {
			if ch.Delta.Content != "" {
				full.WriteString(ch.Delta.Content)
				if onDelta != nil {
					onDelta(ch.Delta.Content)
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				agg.Add(tc)
			}
		}
		return nil
	})
	if err != nil {
		return full.String(), err
	}

	if onToolCall != nil {
		for _, tc := range agg.Completed() {
			onToolCall(tc)
		}
	}
	return full.String(), nil
}

func (c *client) postJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		slurp, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(slurp))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(slurp))
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(slurp, out)
	}
	return lastErr
}

func applyOptions(body map[string]any, opts CompletionOptions) {
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.ResponseFormat != nil {
		body["response_format"] = opts.ResponseFormat
	}
	if len(opts.Tools) > 0 {
		body["tools"] = opts.Tools
	}
	if opts.ToolChoice != nil {
		body["tool_choice"] = opts.ToolChoice
	}
}

func buildMessages(system, user string) []Message {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	return msgs
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
