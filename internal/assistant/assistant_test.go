package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComplete_Success(t *testing.T) {
	var seen completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o-mini-2024","choices":[{"message":{"role":"assistant","content":"  What box type do you need?  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c := New("test-key", WithEndpoint(server.URL))
	resp, err := c.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "I need 500 mailer boxes"},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "What box type do you need?" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Model != "gpt-4o-mini-2024" || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}

	if seen.Model != "gpt-4o-mini" || seen.MaxTokens != 300 || seen.Temperature != 0.7 {
		t.Errorf("request = %+v", seen)
	}
	if len(seen.Messages) != 2 || seen.Messages[1].Role != RoleUser {
		t.Errorf("messages = %+v", seen.Messages)
	}
}

func TestComplete_APIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"structured", http.StatusUnauthorized, `{"error":{"type":"invalid_request_error","message":"bad key"}}`, "status 401: bad key"},
		{"plain text", http.StatusBadGateway, "upstream down", "status 502: upstream down"},
		{"empty body", http.StatusInternalServerError, "", "status 500: Internal Server Error"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "rate limited: slow down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New("k", WithEndpoint(server.URL)).Complete(context.Background(), Request{
				Model:    "m",
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			})
			if !errors.Is(err, ErrAPI) {
				t.Fatalf("err = %v, want ErrAPI", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := New("k", WithEndpoint(server.URL)).Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrAPI) {
		t.Errorf("err = %v, want ErrAPI", err)
	}
}

func TestComplete_RequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		req    Request
		want   string
	}{
		{"missing key", New(" "), Request{Model: "m", Messages: []Message{{Role: RoleUser}}}, "api key is required"},
		{"missing model", New("k"), Request{Messages: []Message{{Role: RoleUser}}}, "model is required"},
		{"no messages", New("k"), Request{Model: "m"}, "at least one message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Complete(context.Background(), tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestWithHTTPClient_IgnoresNil(t *testing.T) {
	c := New("k", WithHTTPClient(nil), WithEndpoint("  "))
	if c.http == nil {
		t.Error("nil http client should be ignored")
	}
	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want default", c.endpoint)
	}
}
