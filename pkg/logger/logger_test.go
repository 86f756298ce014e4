package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		env, level string
		want       slog.Level
	}{
		{"local", "", slog.LevelDebug},
		{"production", "", slog.LevelInfo},
		{"production", "debug", slog.LevelDebug},
		{"dev", "error", slog.LevelError},
		{"staging", "WARN", slog.LevelWarn},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.env, tc.level); got != tc.want {
			t.Fatalf("ParseLevel(%q,%q) = %v, want %v", tc.env, tc.level, got, tc.want)
		}
	}
}

func TestFromFallsBackToDefault(t *testing.T) {
	if From(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
	l := Discard()
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddleware_SetsRequestIDAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "info")

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		if FromGin(c) == slog.Default() {
			t.Errorf("expected request logger on gin context")
		}
		if From(c.Request.Context()) == slog.Default() {
			t.Errorf("expected request logger on request context")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	rid := w.Header().Get(headerRequestID)
	if rid == "" {
		t.Fatalf("expected request id header")
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json log line, got %q: %v", buf.String(), err)
	}
	if line["request_id"] != rid || line["path"] != "/x" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if line["status"].(float64) != http.StatusNoContent {
		t.Fatalf("unexpected status in log: %v", line["status"])
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(Discard()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(headerRequestID) != "abc" {
		t.Fatalf("expected request id to be echoed")
	}
}
