package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama server through its chat endpoint
type OllamaProvider struct {
	endpoint *url.URL
	client   *http.Client
	config   Config
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error"`
}

// NewOllamaProvider creates a provider for the server at config.BaseURL
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	raw := strings.TrimSuffix(config.BaseURL, "/")
	if raw == "" {
		raw = defaultOllamaURL
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("ollama url %q: scheme must be http or https", raw)
	}

	return &OllamaProvider{
		endpoint: endpoint,
		// model loading makes the first call slow
		client: &http.Client{Timeout: config.timeout(2 * defaultTimeout), Transport: config.transport()},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable reports whether the server lists its models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url("/api/tags"), nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Complete sends one non-streaming chat turn with JSON output forced
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req.Model, "")
	if model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	reply, err := p.chat(ctx, chatRequest{
		Model:    model,
		Messages: messages,
		Format:   "json",
		Options: map[string]any{
			"temperature": 0,
			"num_predict": p.config.maxTokens(req.MaxTokens),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(reply.Message.Content),
		Model:      reply.Model,
		TokensUsed: reply.PromptEvalCount + reply.EvalCount,
	}, nil
}

func (p *OllamaProvider) chat(ctx context.Context, body chatRequest) (*chatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url("/api/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var reply chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)

	switch {
	case resp.StatusCode != http.StatusOK && reply.Error != "":
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, reply.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	case reply.Error != "":
		return nil, errors.New(reply.Error)
	case !reply.Done:
		return nil, errors.New("incomplete response")
	}
	return &reply, nil
}

func (p *OllamaProvider) url(path string) string {
	return p.endpoint.JoinPath(path).String()
}
