package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

func writeChatResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Provider.Translate
// ---------------------------------------------------------------------------

func TestProviderTranslate_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q, want /chat/completions suffix", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		writeChatResponse(t, w, `["Hallo", "Willkommen zurück"]`)
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	out, err := p.Translate(context.Background(), []string{"Hello", "Welcome back"}, "en", "de")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(out) != 2 || out[0] != "Hallo" || out[1] != "Willkommen zurück" {
		t.Fatalf("translations = %v", out)
	}

	if got.Model != "test-model" {
		t.Errorf("model = %q, want test-model", got.Model)
	}
	if got.Stream {
		t.Error("stream = true, want false")
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	system := got.Messages[0].Content
	if !strings.Contains(system, "English") || !strings.Contains(system, "Deutsch") {
		t.Errorf("system prompt missing language names: %q", system)
	}
	user := got.Messages[1].Content
	if !strings.Contains(user, `1. "Hello"`) || !strings.Contains(user, `2. "Welcome back"`) {
		t.Errorf("user prompt missing numbered inputs: %q", user)
	}
	if !strings.Contains(user, "exactly 2 translated strings") {
		t.Errorf("user prompt missing count hint: %q", user)
	}
}

func TestProviderTranslate_EmptyInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server called for empty input")
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL})
	out, err := p.Translate(context.Background(), nil, "en", "de")
	if err != nil || out != nil {
		t.Fatalf("got %v, %v, want nil, nil", out, err)
	}
}

func TestProviderTranslate_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
			return
		}
		writeChatResponse(t, w, `["Hallo"]`)
	}))
	defer srv.Close()

	var logged []string
	p := NewProvider(Options{BaseURL: srv.URL, OnLog: func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}})
	out, err := p.Translate(context.Background(), []string{"Hello"}, "en", "de")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(out) != 1 || out[0] != "Hallo" {
		t.Fatalf("translations = %v", out)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(logged) == 0 || !strings.Contains(logged[0], "rate limited") {
		t.Errorf("log = %v, want rate limited message", logged)
	}
}

func TestProviderTranslate_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		writeChatResponse(t, w, `["Hallo"]`)
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL})
	out, err := p.Translate(context.Background(), []string{"Hello"}, "en", "de")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(out) != 1 || calls.Load() != 2 {
		t.Fatalf("translations = %v after %d calls", out, calls.Load())
	}
}

func TestProviderTranslate_BadRequestDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL})
	_, err := p.Translate(context.Background(), []string{"Hello"}, "en", "de")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("err = %v, want status 404", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want no retry on 4xx", calls.Load())
	}
}

func TestProviderTranslate_APIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL})
	_, err := p.Translate(context.Background(), []string{"Hello"}, "en", "de")
	if err == nil || !strings.Contains(err.Error(), "API error: invalid api key") {
		t.Fatalf("err = %v", err)
	}
}

func TestProviderTranslate_WrongCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(t, w, `["only one"]`)
	}))
	defer srv.Close()

	p := NewProvider(Options{BaseURL: srv.URL})
	_, err := p.Translate(context.Background(), []string{"Hello", "Bye"}, "en", "de")
	if err == nil || !strings.Contains(err.Error(), "got 1 translations, expected 2") {
		t.Fatalf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

func TestParseTranslations(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
		want     []string
		wantErr  string
	}{
		{
			name:     "plain array",
			content:  `["Hallo", "Welt"]`,
			expected: 2,
			want:     []string{"Hallo", "Welt"},
		},
		{
			name:     "fenced json block",
			content:  "```json\n[\"Hallo\"]\n```",
			expected: 1,
			want:     []string{"Hallo"},
		},
		{
			name:     "fenced without language tag",
			content:  "```\n[\"Hallo\"]\n```",
			expected: 1,
			want:     []string{"Hallo"},
		},
		{
			name:     "prose around the array",
			content:  "Here are the translations:\n[\"Hallo\", \"Welt\"]\nLet me know if you need more.",
			expected: 2,
			want:     []string{"Hallo", "Welt"},
		},
		{
			name:     "wrong length",
			content:  `["Hallo"]`,
			expected: 2,
			wantErr:  "got 1 translations, expected 2",
		},
		{
			name:     "not json",
			content:  "I cannot translate that.",
			expected: 1,
			wantErr:  "parsing translation response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTranslations(tc.content, tc.expected)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Prompts and retry helpers
// ---------------------------------------------------------------------------

func TestUserPrompt_EscapesMultilineInputs(t *testing.T) {
	got := userPrompt([]string{"Hello\nWorld", "Tab\there"})
	if strings.Count(got, "\n") != 5 {
		t.Errorf("prompt has stray newlines:\n%s", got)
	}
	if !strings.Contains(got, `1. "Hello\\nWorld"`) {
		t.Errorf("newline not escaped: %q", got)
	}
	if !strings.Contains(got, `2. "Tab\\there"`) {
		t.Errorf("tab not escaped: %q", got)
	}
}

func TestRetryAfterDelay(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "2")
	if d := retryAfterDelay(h, 0); d != 3*time.Second {
		t.Errorf("seconds form = %v, want 3s", d)
	}

	h.Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	if d := retryAfterDelay(h, 1); d != 2*time.Second {
		t.Errorf("past date = %v, want backoff 2s", d)
	}

	h.Set("Retry-After", "soon")
	if d := retryAfterDelay(h, 0); d != time.Second {
		t.Errorf("garbage = %v, want backoff 1s", d)
	}

	if d := retryAfterDelay(http.Header{}, 2); d != 4*time.Second {
		t.Errorf("missing header = %v, want backoff 4s", d)
	}
}
