package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"prismatic/internal/queue"
)

func insightFixture() *queue.Insight {
	return &queue.Insight{
		Category: "process",
		Quote:    "ship weekly",
		Summary:  "Weekly releases keep scope honest.",
		Score:    0.9,
	}
}

func completionResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "test-model"},
		WithRetryBackoff(3, time.Millisecond, 5*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	)
}

func TestExtractParsesScoredInsights(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		completionResponse(t, w, `{"insights":[
            {"category":"hiring","quote":"we hire for slope","summary":"Hire for trajectory over resume.","score":0.6},
            {"category":"process","quote":"ship weekly","summary":"Weekly releases keep scope honest.","score":0.9},
            {"category":"","quote":"","summary":"","score":0.5}
        ]}`)
	}))

	extractor := NewExtractor(client, 10)
	insights, err := extractor.Extract(context.Background(), "long transcript body")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 usable insights, got %d", len(insights))
	}
	if insights[0].Score < insights[1].Score {
		t.Fatal("expected insights ordered by descending score")
	}
	if insights[0].Summary != "Weekly releases keep scope honest." {
		t.Fatalf("unexpected top insight %q", insights[0].Summary)
	}
}

func TestExtractCapsInsightCount(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completionResponse(t, w, `{"insights":[
            {"summary":"one","score":0.9},
            {"summary":"two","score":0.8},
            {"summary":"three","score":0.7}
        ]}`)
	}))

	extractor := NewExtractor(client, 2)
	insights, err := extractor.Extract(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected cap of 2 insights, got %d", len(insights))
	}
}

func TestDraftHandlesCodeFencedPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completionResponse(t, w, "```json\n{\"content\":\"Ship weekly. Scope stays honest.\"}\n```")
	}))

	extractor := NewExtractor(client, 10)
	draft, err := extractor.Draft(context.Background(), insightFixture(), "linkedin", 3000)
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if draft != "Ship weekly. Scope stays honest." {
		t.Fatalf("unexpected draft %q", draft)
	}
}

func TestCompleteJSONRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		completionResponse(t, w, `{"ok":true}`)
	}))

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for http 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}
