package clients

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDefaultShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{"network error", nil, errors.New("dial timeout"), true},
		{"server error", &http.Response{StatusCode: http.StatusInternalServerError}, nil, true},
		{"rate limited", &http.Response{StatusCode: http.StatusTooManyRequests}, nil, true},
		{"client error", &http.Response{StatusCode: http.StatusUnauthorized}, nil, false},
		{"success", &http.Response{StatusCode: http.StatusOK}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultShouldRetry(tc.resp, tc.err); got != tc.want {
				t.Fatalf("DefaultShouldRetry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})

	attempts := 0
	resp, err := ExecuteHTTP(context.Background(), executor, func() (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecutorGivesUpAfterMaxRetries(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})

	attempts := 0
	_, err := ExecuteHTTP(context.Background(), executor, func() (*http.Response, error) {
		attempts++
		return nil, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}
