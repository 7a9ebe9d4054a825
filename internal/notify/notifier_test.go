package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"operating-hours/internal/meter"
	"operating-hours/internal/pipeline"
	"operating-hours/internal/registry"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testRun()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "NSW001 (NSW): 08:00:00 to 16:30:00") {
		t.Fatalf("text missing meter line: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testRun()); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestTelegramNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testRun()); err == nil {
		t.Fatal("non-2xx should fail")
	}
}

func TestRenderMessageTruncates(t *testing.T) {
	run := testRun()
	for i := 0; i < 200; i++ {
		run.Outcomes = append(run.Outcomes, pipeline.Outcome{
			Entry:  registry.Entry{NMI: strings.Repeat("X", 20), State: "TAS"},
			Status: pipeline.StatusSkipped,
			Err:    &meter.InvalidMetadataError{Field: "State", Value: "TAS"},
		})
	}
	if got := RenderMessage(run); len(got) > maxMessageLen {
		t.Fatalf("message too long: %d", len(got))
	}
}

func testRun() pipeline.Summary {
	return pipeline.Summary{
		RunID:      uuid.New(),
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
		Outcomes: []pipeline.Outcome{{
			Entry:  registry.Entry{NMI: "NSW001", State: "NSW", Interval: "30"},
			Status: pipeline.StatusEstimated,
			Result: meter.Result{
				Window:         &meter.Window{Start: "08:00:00", End: "16:30:00"},
				Support:        7,
				QualifyingDays: 7,
				DaysEvaluated:  10,
			},
		}},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
