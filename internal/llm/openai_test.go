package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	client, err := NewOpenAIClient(Config{
		BaseURL: baseURL,
		Model:   "test-model",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	client.baseBackoff = time.Millisecond
	return client
}

func completionResponse(text string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, text)
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, completionResponse("generated text"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "generated text" {
		t.Errorf("Complete() = %q, want %q", got, "generated text")
	}
}

func TestCompleteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionResponse("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete() = %q, want %q", got, "ok")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d calls, want 3", n)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v is not a *ProviderError", err)
	}
	if pe.Transient {
		t.Error("exhaustion error should be fatal, not transient")
	}
	// Initial attempt plus maxRetries.
	if n := calls.Load(); n != 4 {
		t.Errorf("server saw %d calls, want 4", n)
	}
}

func TestCompleteFatalError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"auth"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v is not a *ProviderError", err)
	}
	if pe.Transient {
		t.Error("auth error should not be transient")
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", pe.StatusCode)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, want 1 (no retries on fatal errors)", n)
	}
}

func TestCompleteContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.baseBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "prompt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Complete() error = %v, want deadline exceeded", err)
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(Config{Model: "m"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(Config{BaseURL: "http://localhost"}); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&ProviderError{Transient: true, Err: errors.New("x")}) {
		t.Error("IsTransient() = false for transient provider error")
	}
	if IsTransient(&ProviderError{Err: errors.New("x")}) {
		t.Error("IsTransient() = true for fatal provider error")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("IsTransient() = true for non-provider error")
	}
	wrapped := fmt.Errorf("outer: %w", &ProviderError{Transient: true, Err: errors.New("x")})
	if !IsTransient(wrapped) {
		t.Error("IsTransient() = false for wrapped transient error")
	}
}
