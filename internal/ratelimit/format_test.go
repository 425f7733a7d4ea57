package ratelimit

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestHeaders_AllValuesStringified(t *testing.T) {
	result := Result{Success: true, Remaining: 42, Limit: 100, Reset: 1700000000000}

	for _, op := range Operations() {
		headers := Headers(result, op)

		if headers["X-RateLimit-Limit"] != "100" {
			t.Errorf("%s: limit header %q", op, headers["X-RateLimit-Limit"])
		}
		if headers["X-RateLimit-Remaining"] != "42" {
			t.Errorf("%s: remaining header %q", op, headers["X-RateLimit-Remaining"])
		}
		if headers["X-RateLimit-Reset"] != "1700000000000" {
			t.Errorf("%s: reset header %q", op, headers["X-RateLimit-Reset"])
		}
		if headers["X-RateLimit-Operation"] != string(op) {
			t.Errorf("%s: operation header %q", op, headers["X-RateLimit-Operation"])
		}
	}
}

func TestDenialResponse_RetryAfter(t *testing.T) {
	now := time.Now().UnixMilli()

	status, body := DenialResponse(Result{Limit: 10, Reset: now + 120000, Err: "Rate limit exceeded"}, OpTTS)

	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if body.Error.RetryAfter < 119 || body.Error.RetryAfter > 121 {
		t.Fatalf("expected retryAfter around 120s, got %d", body.Error.RetryAfter)
	}
}

func TestDenialResponse_PastResetClampsToZero(t *testing.T) {
	_, body := DenialResponse(Result{Limit: 10, Reset: time.Now().UnixMilli() - 5000}, OpTTS)

	if body.Error.RetryAfter != 0 {
		t.Fatalf("expected retryAfter 0 for past reset, got %d", body.Error.RetryAfter)
	}
}

func TestDenialResponse_Body(t *testing.T) {
	result := Result{Remaining: 0, Limit: 5, Reset: time.Now().UnixMilli() + 1000, Err: "feature not available on tier"}

	_, body := DenialResponse(result, OpTTSDownload)

	if body.Success {
		t.Fatal("denial body must have success=false")
	}
	if body.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Message != "feature not available on tier" {
		t.Fatalf("expected the result's message, got %q", body.Error.Message)
	}
	if body.Error.Operation != OpTTSDownload {
		t.Fatalf("unexpected operation %q", body.Error.Operation)
	}
	if body.Error.Limit != 5 || body.Error.Remaining != 0 {
		t.Fatalf("quota metadata not carried over: %+v", body.Error)
	}
}

func TestDenialResponse_DefaultMessage(t *testing.T) {
	_, body := DenialResponse(Result{Limit: 10, Reset: time.Now().UnixMilli()}, OpAPI)

	if body.Error.Message == "" {
		t.Fatal("expected a default message when the result has none")
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	now := time.UnixMilli(1000000)

	cases := []struct {
		resetMs int64
		want    int
	}{
		{1000000, 0},
		{1000001, 1},
		{1001000, 1},
		{1001001, 2},
		{999999, 0},
	}

	for _, tc := range cases {
		if got := retryAfterSeconds(tc.resetMs, now); got != tc.want {
			t.Errorf("retryAfterSeconds(%d) = %d, want %d", tc.resetMs, got, tc.want)
		}
	}

	// Sanity check the header value is a plain integer second count
	if s := strconv.Itoa(retryAfterSeconds(1060000, now)); s != "60" {
		t.Errorf("expected \"60\", got %q", s)
	}
}
