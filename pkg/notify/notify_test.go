package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elonfeng/handlescore/pkg/source"
)

func testReport() *Report {
	return &Report{
		RunID:     "run-1",
		UserID:    "u1",
		Platform:  source.PlatformTwitter,
		Handle:    "someone",
		Score:     50,
		PostCount: 0,
		ScoredAt:  time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookSignsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got, want := r.Header.Get("X-Signature-256"), Sign("s3cret", body); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		if r.Header.Get("X-Handlescore-Run") != "run-1" || r.Header.Get("X-Handlescore-Event") != EventScoreUpdated {
			t.Errorf("missing event headers: %v", r.Header)
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		if ev.Type != EventScoreUpdated || ev.Report == nil || ev.Report.Score != 50 {
			t.Errorf("unexpected event: %s", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, "s3cret").Send(context.Background(), testReport()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

func TestWebhookUnsigned(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Signature-256") != "" {
			t.Errorf("unexpected signature header")
		}
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, "").Send(context.Background(), testReport()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

func TestSign(t *testing.T) {
	t.Parallel()

	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	want := "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got := Sign("key", []byte("The quick brown fox jumps over the lazy dog")); got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
}

type failingNotifier struct{ name string }

func (f failingNotifier) Name() string { return f.name }

func (f failingNotifier) Send(context.Context, *Report) error { return errors.New("unreachable") }

func TestBroadcastJoinsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewManager([]Notifier{NewWebhook(srv.URL, ""), failingNotifier{name: "pager"}})
	if !m.HasNotifiers() {
		t.Fatal("expected notifiers")
	}

	err := m.Broadcast(context.Background(), testReport())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"webhook: webhook status 500", "pager: unreachable"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestNilManager(t *testing.T) {
	t.Parallel()

	var m *Manager
	if m.HasNotifiers() {
		t.Fatal("nil manager has no notifiers")
	}
	if err := m.Broadcast(context.Background(), testReport()); err != nil {
		t.Fatalf("nil manager broadcast: %v", err)
	}
}
