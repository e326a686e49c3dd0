package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComplete(t *testing.T) {
	var got []Message
	c := ChatFunc(func(_ context.Context, msgs []Message) (string, error) {
		got = msgs
		return "ok", nil
	})
	out, err := Complete(context.Background(), c, "clean this")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "ok" {
		t.Errorf("Complete() = %q", out)
	}
	want := []Message{{Role: RoleUser, Content: "clean this"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAIChat(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"score\":0.8}"}}]}`)); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	c := NewOpenAI("sk-test", "gpt-4o-mini", WithBaseURL(server.URL))
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You output JSON"},
		{Role: RoleUser, Content: "judge"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != `{"score":0.8}` {
		t.Errorf("Chat() = %q", out)
	}
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", body["model"])
	}
	msgs, ok := body["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	if first, ok := msgs[0].(map[string]any); !ok || first["role"] != "system" {
		t.Errorf("first message = %v, want system role", msgs[0])
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	c := NewOpenAI("sk-test", "m", WithBaseURL(server.URL))
	if _, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Chat() error = %v, want ErrEmptyResponse", err)
	}
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Eric Doty"},"done":true}`)); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	c, err := NewOllama("llama3", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	out, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "clean"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != "Eric Doty" {
		t.Errorf("Chat() = %q", out)
	}
}

type verdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		lenient bool
		want    verdict
		wantErr bool
	}{
		{"strict valid", `{"score":0.9,"reason":"same person"}`, false, verdict{0.9, "same person"}, false},
		{"strict fenced", "```json\n{\"score\":0.9}\n```", false, verdict{}, true},
		{"strict garbage", "not json", false, verdict{}, true},
		{"lenient fenced", "```json\n{\"score\":0.9,\"reason\":\"ok\"}\n```", true, verdict{0.9, "ok"}, false},
		{"lenient double encoded", `"{\"score\":0.5,\"reason\":\"maybe\"}"`, true, verdict{0.5, "maybe"}, false},
		{"lenient trailing comma", `{"score":0.4,"reason":"weak",}`, true, verdict{0.4, "weak"}, false},
		{"lenient no object", "I cannot answer", true, verdict{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verdict
			err := DecodeJSON(tt.in, &got, tt.lenient)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeJSON() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSchema(t *testing.T) {
	s := Schema(verdict{})
	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		t.Fatalf("Schema() is not JSON: %v", err)
	}
	props, ok := parsed["properties"].(map[string]any)
	if !ok {
		t.Fatalf("Schema() has no properties: %s", s)
	}
	for _, k := range []string{"score", "reason"} {
		if _, ok := props[k]; !ok {
			t.Errorf("Schema() missing property %q", k)
		}
	}
}
