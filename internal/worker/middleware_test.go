package worker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Content-Security-Policy", "default-src 'none'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, rr.Header().Get(tt.header), tt.header)
	}
}

func TestSecurityHeaders_CORS(t *testing.T) {
	handler := SecurityHeaders(okHandler())

	tests := []struct {
		name       string
		origin     string
		expectCORS bool
	}{
		{name: "vite dev server allowed", origin: "http://localhost:5173", expectCORS: true},
		{name: "loopback allowed", origin: "http://127.0.0.1:3000", expectCORS: true},
		{name: "external origin blocked", origin: "http://evil.com"},
		{name: "evil-localhost.com bypass attempt blocked", origin: "http://evil-localhost.com"},
		{name: "localhost subdomain bypass attempt blocked", origin: "http://localhost.evil.com"},
		{name: "unknown localhost port blocked", origin: "http://localhost:9999"},
		{name: "no origin header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			cors := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.expectCORS {
				assert.Equal(t, tt.origin, cors)
			} else {
				assert.Empty(t, cors)
			}
		})
	}
}

func TestSecurityHeaders_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/correlate/email", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	SecurityHeaders(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(100)(okHandler())

	tests := []struct {
		name           string
		contentLength  int64
		expectedStatus int
	}{
		{"within limit", 50, http.StatusOK},
		{"at limit", 100, http.StatusOK},
		{"exceeds limit", 150, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", nil)
			req.ContentLength = tt.contentLength
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates new request ID", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

		assert.Len(t, rr.Header().Get("X-Request-ID"), 16)
		assert.Equal(t, rr.Header().Get("X-Request-ID"), seen)
	})

	t.Run("uses existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "test-id-12345")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "test-id-12345", rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "test-id-12345", seen)
	})
}

func TestRequireJSONContentType(t *testing.T) {
	handler := RequireJSONContentType(okHandler())

	tests := []struct {
		name           string
		method         string
		contentType    string
		expectedStatus int
	}{
		{"GET ignores content type", "GET", "text/plain", http.StatusOK},
		{"POST with JSON", "POST", "application/json", http.StatusOK},
		{"POST with JSON charset", "POST", "application/json; charset=utf-8", http.StatusOK},
		{"POST without content type", "POST", "", http.StatusOK},
		{"POST with form", "POST", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"PUT with text", "PUT", "text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestValidateSourceName(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantError bool
	}{
		{"email preset", "email", false},
		{"custom source", "slack_ta-channels", false},
		{"empty", "", true},
		{"path traversal attack", "../../../etc/passwd", true},
		{"dot", "email.yaml", true},
		{"shell injection attempt", "email; rm -rf /", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceName(tt.source)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
