package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
)

func Test_requestIDMiddlewareHeaderExists(t *testing.T) {
	api := &API{}
	wantID := "test-req-id-123"
	handler := api.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotID := GetRequestID(r.Context()); gotID != wantID {
			t.Errorf("want request id in context %q, got %q", wantID, gotID)
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", wantID)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	if got := rr.Header().Get("X-Request-Id"); got != wantID {
		t.Errorf("want X-Request-Id header %q, got %q", wantID, got)
	}
}

func Test_requestIDMiddlewareHeaderNotExists(t *testing.T) {
	api := &API{}
	handler := api.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID := GetRequestID(r.Context())
		if gotID == "" {
			t.Error("want non-empty request id in context when header is missing")
		}
		respID := w.Header().Get("X-Request-Id")
		if respID != gotID {
			t.Errorf("want X-Request-Id header %q, got %q", gotID, respID)
		}
		if _, err := uuid.FromString(respID); err != nil {
			t.Errorf("want valid UUID for generated request id, got %q", respID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
}

func Test_headerMiddleware(t *testing.T) {
	api := &API{}
	handler := api.headerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Errorf("want %s %q, got %q", k, v, got)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("want Content-Security-Policy header")
	}
}

func Test_accessLogMiddlewarePassesThrough(t *testing.T) {
	api := &API{}
	handler := api.accessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "queued")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusAccepted {
		t.Errorf("want status code %v, got %v", http.StatusAccepted, rr.Code)
	}
	if rr.Body.String() != "queued" {
		t.Errorf("want body passed through, got %q", rr.Body.String())
	}
}

func Test_requestIDMiddlewareMalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "markup", id: "<script>alert(1)</script>"},
		{name: "line break", id: "abc\r\nX-Injected: 1"},
		{name: "too long", id: strings.Repeat("a", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &API{}
			handler := api.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID := GetRequestID(r.Context())
				if gotID == tt.id {
					t.Errorf("want malformed request id replaced, got %q", gotID)
				}
				if _, err := uuid.FromString(gotID); err != nil {
					t.Errorf("want generated UUID, got %q", gotID)
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header["X-Request-Id"] = []string{tt.id}
			handler.ServeHTTP(httptest.NewRecorder(), req)
		})
	}
}
