package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"soundsketch/internal/analysis"
	"soundsketch/internal/config"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = url
	cfg.LLM.Model = "test-model"
	return &cfg
}

func completionBody(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(body)
	return string(encoded)
}

func sampleFeatures() *analysis.Features {
	tempo := 128.0
	return &analysis.Features{Filename: "song.mp3", TempoBPM: &tempo}
}

func TestDescribeParsesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("response format = %v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "128") {
			t.Errorf("feature document not in user message: %#v", req.Messages)
		}
		w.Write([]byte(completionBody(`{"summary": "An upbeat track.", "mood": "energetic", "highlights": ["steady 128 BPM"]}`)))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	description, err := client.Describe(context.Background(), sampleFeatures())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if description.Summary != "An upbeat track." || description.Mood != "energetic" {
		t.Fatalf("unexpected description: %#v", description)
	}
	if len(description.Highlights) != 1 {
		t.Fatalf("highlights = %#v", description.Highlights)
	}
}

func TestDescribeStripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("```json\n{\"summary\": \"Fenced.\", \"mood\": \"calm\"}\n```")))
	}))
	defer server.Close()

	description, err := NewClient(testConfig(server.URL)).Describe(context.Background(), sampleFeatures())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if description.Summary != "Fenced." {
		t.Fatalf("unexpected summary: %q", description.Summary)
	}
}

func TestDescribeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody(`{"summary": "Recovered.", "mood": "steady"}`)))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
	description, err := client.Describe(context.Background(), sampleFeatures())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if description.Summary != "Recovered." {
		t.Fatalf("unexpected summary: %q", description.Summary)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestDescribeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
	if _, err := client.Describe(context.Background(), sampleFeatures()); err == nil {
		t.Fatal("expected error for 401")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want no retries", got)
	}
}

func TestDescribeRequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.LLM.APIKey = ""
	if _, err := NewClient(cfg).Describe(context.Background(), sampleFeatures()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestDescribeRejectsEmptySummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`{"summary": "", "mood": "flat"}`)))
	}))
	defer server.Close()

	if _, err := NewClient(testConfig(server.URL)).Describe(context.Background(), sampleFeatures()); err == nil {
		t.Fatal("expected error for empty summary")
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok": true}`,
		"```json\n{\"ok\": true}\n```",
		"Here you go: {\"ok\": true} Enjoy!",
	}
	for _, content := range cases {
		target.OK = false
		if err := decodeModelJSON(content, &target); err != nil {
			t.Errorf("decodeModelJSON(%q) failed: %v", content, err)
			continue
		}
		if !target.OK {
			t.Errorf("decodeModelJSON(%q) did not populate target", content)
		}
	}
	if err := decodeModelJSON("", &target); err == nil {
		t.Error("expected error for empty content")
	}
}
