package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, auth string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("failed to decode JSON %q: %v", body, err)
	}
	return data
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	for _, code := range []int{200, 201, 400, 404, 500, 503} {
		resp, _ := do(t, http.MethodGet, ts.URL+"/status/"+strconv.Itoa(code), "")
		if resp.StatusCode != code {
			t.Errorf("GET /status/%d: got %d", code, resp.StatusCode)
		}
	}

	if resp, _ := do(t, http.MethodGet, ts.URL+"/status/abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric code, got %d", resp.StatusCode)
	}
}

func TestDelayEndpoints(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path     string
		min, max time.Duration
	}{
		{"/delay/100", 100 * time.Millisecond, 200 * time.Millisecond},
		{"/random-delay?min=50&max=100", 50 * time.Millisecond, 150 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			start := time.Now()
			resp, _ := do(t, http.MethodGet, ts.URL+tt.path, "")
			elapsed := time.Since(start)

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if elapsed < tt.min || elapsed > tt.max {
				t.Errorf("expected delay in [%v, %v], got %v", tt.min, tt.max, elapsed)
			}
		})
	}
}

func TestEchoEndpoint(t *testing.T) {
	ts := newTestServer(t)
	body := `{"message": "hello"}`

	resp, err := http.Post(ts.URL+"/echo", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /echo failed: %v", err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)

	if string(got) != body {
		t.Errorf("expected body %q, got %q", body, got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestFailRateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		rate string
		want int
	}{
		{"100", http.StatusInternalServerError},
		{"0", http.StatusOK},
		{"bogus", http.StatusOK},
	}
	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			resp, _ := do(t, http.MethodGet, ts.URL+"/fail-rate?rate="+tt.rate, "")
			if resp.StatusCode != tt.want {
				t.Fatalf("rate=%s: expected %d, got %d", tt.rate, tt.want, resp.StatusCode)
			}
		}
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/json", "")

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	data := decode(t, body)
	for _, field := range []string{"id", "timestamp", "method", "path"} {
		if _, ok := data[field]; !ok {
			t.Errorf("expected %q field in JSON response", field)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if decode(t, body)["status"] != "ok" {
		t.Errorf("expected status ok, got %s", body)
	}
}

func TestHeadersEndpoint(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/headers", nil)
	req.Header.Set("X-Custom-Header", "test-value")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /headers failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	headers, ok := decode(t, body)["headers"].(map[string]any)
	if !ok {
		t.Fatal("expected 'headers' object in response")
	}
	if headers["X-Custom-Header"] != "test-value" {
		t.Errorf("expected X-Custom-Header to be 'test-value', got %v", headers["X-Custom-Header"])
	}
}

func TestLoginThenMe(t *testing.T) {
	ts := newTestServer(t)

	_, body := do(t, http.MethodPost, ts.URL+"/auth/login", "")
	login := decode(t, body)
	token, _ := login["auth"].(map[string]any)["token"].(string)
	if !strings.HasPrefix(token, "token-") {
		t.Fatalf("expected token-prefixed token, got %q", token)
	}
	userID := login["user"].(map[string]any)["id"].(float64)

	_, body = do(t, http.MethodGet, ts.URL+"/users/me", "Bearer "+token)
	me := decode(t, body)
	if me["user_id"] != strconv.Itoa(int(userID)) {
		t.Errorf("expected me to resolve to user %v, got %v", userID, me["user_id"])
	}
	if me["authenticated"] != true {
		t.Error("expected authenticated user")
	}
}

func TestUserEndpoint_Anonymous(t *testing.T) {
	ts := newTestServer(t)

	_, body := do(t, http.MethodGet, ts.URL+"/users/42", "")

	data := decode(t, body)
	if data["user_id"] != "42" || data["authenticated"] != false {
		t.Errorf("unexpected user response %v", data)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	if resp, _ := do(t, http.MethodGet, ts.URL+"/auth/login", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /auth/login, got %d", resp.StatusCode)
	}
}

func TestWithLogger(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	ts := newTestServer(t, WithLogger(zap.New(obs)))

	do(t, http.MethodGet, ts.URL+"/status/418", "")

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(418) {
		t.Errorf("expected status 418 logged, got %v", got)
	}
}
