package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/metrics"
)

func fullKeys() Credentials {
	return Credentials{OpenAI: "sk-o", Anthropic: "sk-a", Gemini: "g-key", OpenRouter: "sk-or"}
}

func TestResolveAbsentWhenCredentialEmpty(t *testing.T) {
	for _, id := range Providers {
		cfg := Config{Provider: id, Model: "m", Keys: fullKeys()}
		if Resolve(cfg) == nil {
			t.Errorf("%s: expected handle with credential set", id)
		}

		keys := fullKeys()
		switch id {
		case ProviderOpenAI:
			keys.OpenAI = ""
		case ProviderAnthropic:
			keys.Anthropic = ""
		case ProviderGemini:
			keys.Gemini = ""
		case ProviderOpenRouter:
			keys.OpenRouter = ""
		}
		cfg.Keys = keys
		if h := Resolve(cfg); h != nil {
			t.Errorf("%s: expected absent handle without credential", id)
		}
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	if Resolve(Config{Provider: "ollama", Keys: fullKeys()}) != nil {
		t.Error("unknown provider should resolve to absent")
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	h := Resolve(Config{Provider: "OpenRouter", Keys: fullKeys()})
	if h == nil || h.Provider() != ProviderOpenRouter {
		t.Fatalf("expected openrouter handle, got %+v", h)
	}
	if h.Config().Provider != "OpenRouter" {
		t.Error("handle must carry the config it was built from")
	}
}

func TestSendOnAbsentHandle(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	messages := [][]Message{
		nil,
		{User("hi")},
		{System("s"), User("a"), User("b")},
	}
	for _, id := range Providers {
		cfg := Config{Provider: id, BaseURLs: map[ProviderID]string{id: srv.URL}}
		h := NewHolder(cfg, zap.NewNop(), nil)
		for _, msgs := range messages {
			_, err := h.Send(context.Background(), msgs)
			if err == nil {
				t.Fatalf("%s: expected error", id)
			}
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("%s: expected ErrNotConfigured, got %v", id, err)
			}
			if IsTransport(err) {
				t.Errorf("%s: absent handle must not look like a transport failure", id)
			}
			if !strings.Contains(err.Error(), string(id)) {
				t.Errorf("%s: error %q should name the provider", id, err)
			}
		}
	}
	if hits != 0 {
		t.Errorf("expected no network calls, got %d", hits)
	}
}

func TestOpenAICompatibleSend(t *testing.T) {
	for _, id := range []ProviderID{ProviderOpenAI, ProviderOpenRouter} {
		var got openaiRequest
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			auth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			w.Write([]byte(`{"choices":[{"message":{"content":"forty-two"}},{"message":{"content":"other"}}]}`))
		}))

		cfg := Config{Provider: id, Model: "m-1", Keys: fullKeys(), BaseURLs: map[ProviderID]string{id: srv.URL}}
		h := NewHolder(cfg, nil, nil)
		text, err := h.Send(context.Background(), []Message{System("sys"), User("q")})
		srv.Close()

		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if text != "forty-two" {
			t.Errorf("%s: text = %q", id, text)
		}
		if got.Model != "m-1" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "q" {
			t.Errorf("%s: messages not forwarded unmodified: %+v", id, got)
		}
		want := "Bearer " + fullKeys().For(id)
		if auth != want {
			t.Errorf("%s: auth = %q, want %q", id, auth, want)
		}
	}
}

func TestOpenAITransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	cfg := Config{Provider: ProviderOpenAI, Keys: fullKeys(), BaseURLs: map[ProviderID]string{ProviderOpenAI: srv.URL}}
	h := NewHolder(cfg, zap.NewNop(), m)
	_, err := h.Send(context.Background(), []Message{User("q")})
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Error("transport error must not match ErrNotConfigured")
	}
	if !strings.Contains(err.Error(), "openai") || !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry provider and cause: %q", err)
	}
}

func TestAnthropicSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "sk-a" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"the answer"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	cfg := Config{Provider: ProviderAnthropic, Model: "claude-test", Keys: fullKeys(),
		BaseURLs: map[ProviderID]string{ProviderAnthropic: srv.URL}}
	text, err := NewHolder(cfg, nil, nil).Send(context.Background(), []Message{System("be brief"), User("q")})
	if err != nil {
		t.Fatal(err)
	}
	if text != "the answer" {
		t.Errorf("text = %q", text)
	}
	if got["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Errorf("system message should be lifted out of the conversation, got %v", msgs)
	}
	if _, ok := got["system"]; !ok {
		t.Error("expected top-level system field")
	}
}

func TestAnthropicParamsJoinsSystemMessages(t *testing.T) {
	p := anthropicParams("m", []Message{System("a"), User("q"), System("b")})
	if len(p.System) != 1 || p.System[0].Text != "a\n\nb" {
		t.Errorf("system = %+v", p.System)
	}
	if len(p.Messages) != 1 {
		t.Errorf("conversation = %d messages", len(p.Messages))
	}
	if p.MaxTokens != anthropicMaxTokens {
		t.Errorf("max tokens = %d", p.MaxTokens)
	}
}

func TestGeminiSendsLastMessageOnly(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"part one, "},{"text":"part two"}]}}]}`))
	}))
	defer srv.Close()

	cfg := Config{Provider: ProviderGemini, Model: "gemini-test", Keys: fullKeys(),
		BaseURLs: map[ProviderID]string{ProviderGemini: srv.URL}}
	text, err := NewHolder(cfg, nil, nil).Send(context.Background(), []Message{System("SYSTEM-PROMPT"), User("final question")})
	if err != nil {
		t.Fatal(err)
	}
	if text != "part one, part two" {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(body, "SYSTEM-PROMPT") || !strings.Contains(body, "final question") {
		t.Errorf("only the last message should be sent, body = %s", body)
	}
}

func TestHolderReloadSwapsBinding(t *testing.T) {
	h := NewHolder(Config{Provider: ProviderOpenAI}, nil, nil)
	old := h.Current()
	if old.Ready() {
		t.Fatal("expected absent binding")
	}

	next := h.Reload(Config{Provider: ProviderOpenAI, Keys: Credentials{OpenAI: "k"}})
	if !next.Ready() || h.Current() != next {
		t.Error("reload should publish a ready binding")
	}
	if old.Handle != nil || old.Config.Keys.OpenAI != "" {
		t.Error("previous binding must not change")
	}
	if next.Handle.Config().Keys.OpenAI != "k" {
		t.Error("handle must carry the reloaded config")
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("a", MaxDataChars+50)
	got, cut := Truncate(text, MaxDataChars)
	if !cut {
		t.Fatal("expected truncation")
	}
	if got != strings.Repeat("a", MaxDataChars)+TruncationMarker {
		t.Errorf("unexpected truncation result of length %d", len(got))
	}

	short := strings.Repeat("b", MaxDataChars)
	if got, cut := Truncate(short, MaxDataChars); cut || got != short {
		t.Error("text at the limit must not be truncated")
	}

	if got, _ := Truncate("héllo", 2); got != "hé"+TruncationMarker {
		t.Errorf("rune truncation = %q", got)
	}
}
