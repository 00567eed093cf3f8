package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateWithoutKeyUsesFallback(t *testing.T) {
	c := NewClient("", "")

	res, err := c.Generate(context.Background(), "tell me about bursaries")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !res.Success {
		t.Error("expected Success=true")
	}
	if !res.Fallback {
		t.Error("expected Fallback=true")
	}
	if !strings.Contains(res.Text, "tell me about bursaries") {
		t.Errorf("fallback text should embed the original prompt, got: %s", res.Text)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	c := NewClient("", "key")
	if _, err := c.Generate(context.Background(), ""); err != ErrEmptyPrompt {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestGenerateRemoteFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json at all"))
			},
		},
		{
			name: "empty candidate list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL+"/model", "test-key")
			res, err := c.Generate(context.Background(), "how do hardship funds work")
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if !res.Fallback {
				t.Error("expected fallback on remote failure")
			}
			if !strings.Contains(res.Text, "how do hardship funds work") {
				t.Error("fallback text should embed the original prompt")
			}
		})
	}
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected key query param, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Bursaries are non-repayable awards."}]}}]}`))
	}))
	defer srv.Close()

	c := &Client{Endpoint: srv.URL + "/model", APIKey: "test-key", HTTP: &http.Client{Timeout: 5 * time.Second}}
	res, err := c.Generate(context.Background(), "what is a bursary")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Fallback {
		t.Error("expected remote text, not fallback")
	}
	if res.Text != "Bursaries are non-repayable awards." {
		t.Errorf("unexpected text: %s", res.Text)
	}
}

func TestGenerateChatFallbackKeyedToLastUserMessage(t *testing.T) {
	c := NewClient("", "")
	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "model", Content: "hi, how can I help?"},
		{Role: "user", Content: "compare maintenance loans"},
	}
	res, err := c.GenerateChat(context.Background(), msgs)
	if err != nil {
		t.Fatalf("GenerateChat returned error: %v", err)
	}
	if !res.Fallback || !strings.Contains(res.Text, "compare maintenance loans") {
		t.Errorf("fallback should embed the last user message, got: %s", res.Text)
	}
}
