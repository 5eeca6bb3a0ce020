package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoRequest_success(t *testing.T) {
	var got relayRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":"pong"}`))
	}))
	defer ts.Close()

	body, err := DoRequest(context.Background(), ts.Client(), ts.URL, relayRequest{Provider: "openai", Model: "gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"content":"pong"}` {
		t.Errorf("body = %s", body)
	}
	if got.Provider != "openai" || got.Model != "gpt-4o" {
		t.Errorf("payload not sent intact: %+v", got)
	}
}

func TestDoRequest_headers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-7" {
			t.Errorf("X-Request-ID = %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	ctx := WithRequestID(context.Background(), "req-7")
	if _, err := DoRequest(ctx, ts.Client(), ts.URL, struct{}{}, map[string]string{"Authorization": "Bearer tok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoRequest_status_errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantSecs   int
	}{
		{"server error", http.StatusBadGateway, "", 0},
		{"rate limited", http.StatusTooManyRequests, "42", 42},
		{"bad retry-after", http.StatusTooManyRequests, "Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream said no"))
			}))
			defer ts.Close()

			_, err := DoRequest(context.Background(), ts.Client(), ts.URL, struct{}{}, nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %T: %v", err, err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", se.StatusCode, tt.status)
			}
			if se.RetryAfterSecs != tt.wantSecs {
				t.Errorf("RetryAfterSecs = %d, want %d", se.RetryAfterSecs, tt.wantSecs)
			}
			if !strings.Contains(se.Error(), "upstream said no") {
				t.Errorf("Error() = %q, want body text", se.Error())
			}
		})
	}
}

func TestDoRequest_context_deadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := DoRequest(ctx, ts.Client(), ts.URL, struct{}{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDoRequest_marshal_error(t *testing.T) {
	_, err := DoRequest(context.Background(), http.DefaultClient, "http://localhost", make(chan int), nil)
	if err == nil || !strings.Contains(err.Error(), "marshal") {
		t.Fatalf("expected marshal error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]int{
		"60":           60,
		" 5 ":          5,
		"":             0,
		"-3":           0,
		"not-a-number": 0,
	}
	for in, want := range tests {
		if got := ParseRetryAfter(in); got != want {
			t.Errorf("ParseRetryAfter(%q) = %d, want %d", in, got, want)
		}
	}
}
