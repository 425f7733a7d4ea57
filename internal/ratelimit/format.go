package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

const defaultDenialMessage = "Rate limit exceeded. Please try again later."

// Headers returns the standard quota headers for a decision. They are applied
// to every evaluated response, allowed or denied.
func Headers(result Result, op Operation) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(result.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(result.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(result.Reset, 10),
		"X-RateLimit-Operation": string(op),
	}
}

type DenialBody struct {
	Success bool        `json:"success"`
	Error   DenialError `json:"error"`
}

type DenialError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Operation  Operation `json:"operation"`
	RetryAfter int       `json:"retryAfter"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	Reset      int64     `json:"reset"`
}

// DenialResponse renders a denied Result as the 429 status and body the
// platform returns everywhere.
func DenialResponse(result Result, op Operation) (int, DenialBody) {
	message := result.Err
	if message == "" {
		message = defaultDenialMessage
	}

	return http.StatusTooManyRequests, DenialBody{
		Success: false,
		Error: DenialError{
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    message,
			Operation:  op,
			RetryAfter: retryAfterSeconds(result.Reset, time.Now()),
			Limit:      result.Limit,
			Remaining:  result.Remaining,
			Reset:      result.Reset,
		},
	}
}

// Seconds until the window resets, rounded up, never negative.
func retryAfterSeconds(resetMs int64, now time.Time) int {
	ms := resetMs - now.UnixMilli()
	if ms <= 0 {
		return 0
	}

	return int((ms + 999) / 1000)
}
