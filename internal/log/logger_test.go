package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfigureDefaultsLevelAndService(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	L().Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "lineupd" {
		t.Errorf("service = %v, want lineupd", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Level: "info"})

	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Error("expected request id in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
	if !strings.Contains(buf.String(), `"event":"request.handled"`) {
		t.Errorf("expected request.handled event in log output, got %q", buf.String())
	}
}
