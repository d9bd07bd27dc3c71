package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNewRunStartedPayload(t *testing.T) {
	payload := NewRunStartedPayload(RunStart{RunID: "abc", Tier: "CHALLENGER", Players: 300, Restored: 1200, Target: 10000})

	if payload.Content != "" {
		t.Errorf("start notification should not mention anyone, got %q", payload.Content)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Color != colorBlue {
		t.Errorf("expected blue color, got %d", embed.Color)
	}
	if embed.Fields[1].Value != "1,200 / 10,000" {
		t.Errorf("unexpected progress value %q", embed.Fields[1].Value)
	}
	if embed.Footer == nil || embed.Footer.Text != "run abc" {
		t.Errorf("unexpected footer %+v", embed.Footer)
	}
}

func TestNewRunAbortedPayload(t *testing.T) {
	r := RunResult{RunID: "abc", Collected: 42, Total: 1242, Target: 10000, Failed: 3, Runtime: 2*time.Hour + 5*time.Minute}
	payload := NewRunAbortedPayload(r, "store append failed")

	if !strings.Contains(payload.Content, "@here") {
		t.Error("aborted notification should mention @here")
	}
	embed := payload.Embeds[0]
	if embed.Color != colorRed {
		t.Errorf("expected red color, got %d", embed.Color)
	}
	if embed.Description != "store append failed" {
		t.Errorf("unexpected description %q", embed.Description)
	}

	values := map[string]string{}
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}
	if values["Runtime"] != "2h 5m" {
		t.Errorf("unexpected runtime %q", values["Runtime"])
	}
	if values["Total"] != "1,242 / 10,000" {
		t.Errorf("unexpected total %q", values["Total"])
	}
}

func TestPayloadJSON(t *testing.T) {
	payload := NewRunFinishedPayload(RunResult{RunID: "abc", Collected: 5})

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), `"content"`) {
		t.Errorf("empty content should be omitted: %s", data)
	}

	var decoded WebhookPayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Embeds[0].Title != "Collection Run Finished" {
		t.Errorf("unexpected title %q", decoded.Embeds[0].Title)
	}
}

func TestWebhookClient_Send(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.RunFinished(context.Background(), RunResult{RunID: "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "Collection Run Finished") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestWebhookClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "x"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestWebhookClient_NetworkError(t *testing.T) {
	client := NewWebhookClient("http://localhost:1")
	if err := client.Send(context.Background(), WebhookPayload{Content: "x"}); err == nil {
		t.Error("expected network error")
	}
}

func TestWebhookClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewWebhookClient(server.URL).Send(ctx, WebhookPayload{Content: "x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestWebhookClient_RateLimited(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "x"}); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestWebhookClient_RateLimitedGivesUp(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "x"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts.Load() != maxRetries {
		t.Errorf("expected %d attempts, got %d", maxRetries, attempts.Load())
	}
}

type failingNotifier struct{ Nop }

func (failingNotifier) RunFinished(context.Context, RunResult) error {
	return errors.New("boom")
}

func TestBestEffort_LogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := BestEffort{Notifier: failingNotifier{}, Log: log}

	if err := n.RunFinished(context.Background(), RunResult{}); err != nil {
		t.Fatalf("best effort notifier returned %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	if !strings.Contains(entry.Message, "boom") {
		t.Errorf("unexpected message %q", entry.Message)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New("").(Nop); !ok {
		t.Error("empty webhook URL should yield Nop")
	}
	if _, ok := New("http://example.invalid").(*WebhookClient); !ok {
		t.Error("webhook URL should yield a WebhookClient")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{47832, "47,832"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
