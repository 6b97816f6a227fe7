package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerAddsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithWriter(buf, slog.LevelInfo).WithComponent(ComponentLedger)

	logger.Info("filtered", FieldRecords, 3)

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "records=3") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLogError(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithWriter(buf, slog.LevelInfo).WithComponent(ComponentQuotes)

	logger.LogError(context.Background(), "lookup failed", errors.New("boom"), OpRate, NewFields().WithCounts(1, 0))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=currency_rate", "component=quotes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", got)
	}
}

func TestMiddlewareSetsRequestIDAndLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithWriter(buf, slog.LevelInfo)

	var seen *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=taxi", nil)
	req.Header.Set(RequestIDHeader, "req_fixed")
	h.ServeHTTP(rr, req)

	if rr.Header().Get(RequestIDHeader) != "req_fixed" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get(RequestIDHeader))
	}
	if seen == nil || seen.Component() != ComponentHTTP {
		t.Fatalf("logger not stored in context: %+v", seen)
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=418") || !strings.Contains(out, "request_id=req_fixed") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || a == b {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
