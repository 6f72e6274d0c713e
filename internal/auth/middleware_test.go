package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func call(t *testing.T, h http.Handler, target, header, key string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		key    string
		target string
		sent   string
		want   int
	}{
		{"mode none passes through", "none", "secret", "/", "", http.StatusNoContent},
		{"empty key passes through", "apikey", "", "/", "", http.StatusNoContent},
		{"correct key", "apikey", "secret", "/", "secret", http.StatusNoContent},
		{"wrong key", "apikey", "secret", "/", "nope", http.StatusUnauthorized},
		{"missing key", "apikey", "secret", "/", "", http.StatusUnauthorized},
		{"query fallback", "apikey", "secret", "/ws/stream?api_key=secret", "", http.StatusNoContent},
		{"wrong query key", "apikey", "secret", "/ws/stream?api_key=x", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKey(tc.mode, "x-api-key", tc.key)(okHandler)
			if got := call(t, h, tc.target, "x-api-key", tc.sent); got != tc.want {
				t.Errorf("status: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "x-asset-key", "k")(okHandler)
	if got := call(t, h, "/", "x-asset-key", "k"); got != http.StatusNoContent {
		t.Errorf("custom header: got %d", got)
	}
	if got := call(t, h, "/", "x-api-key", "k"); got != http.StatusUnauthorized {
		t.Errorf("default header must not be accepted: got %d", got)
	}
}
