// Package assistant is a small client for OpenAI-compatible chat completion
// endpoints, used to draft replies to website visitors.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrAPI is wrapped by every error the completion endpoint reports.
var ErrAPI = errors.New("assistant: api error")

// Message is one turn of model input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response is the first choice of a completion.
type Response struct {
	Content      string
	Model        string
	FinishReason string
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.endpoint = trimmed
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

var _ Completer = (*Client)(nil)

// DefaultEndpoint is the OpenAI chat completions URL.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends req and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, errors.New("assistant: api key is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return Response{}, errors.New("assistant: model is required")
	}
	if len(req.Messages) == 0 {
		return Response{}, errors.New("assistant: at least one message is required")
	}

	body, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("assistant: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("assistant: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("assistant: call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, parseAPIError(resp)
	}

	var parsed completionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("assistant: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: response contained no choices", ErrAPI)
	}
	choice := parsed.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return Response{}, fmt.Errorf("%w: response contained no content", ErrAPI)
	}

	model := parsed.Model
	if model == "" {
		model = req.Model
	}
	return Response{Content: content, Model: model, FinishReason: choice.FinishReason}, nil
}

func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	message := strings.TrimSpace(string(body))
	if len(body) > 0 {
		var env errorEnvelope
		if err := json.Unmarshal(body, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
			message = env.Error.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited: %s", ErrAPI, message)
	}
	return fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, message)
}
