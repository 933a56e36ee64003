package apiclient

import (
	"encoding/json"
	"net/http"
	"strings"

	"hospops/internal/apperr"
)

// Envelope is the wrapper every backend response uses.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  T      `json:"result,omitempty"`
}

// Unwrap returns Result for a successful envelope and a
// *apperr.RequestFailedError carrying Message otherwise.
func Unwrap[T any](env Envelope[T]) (T, error) {
	if !env.Success {
		var zero T
		return zero, &apperr.RequestFailedError{Message: env.Message}
	}
	return env.Result, nil
}

// rawEnvelope tolerates bodies that are not envelopes so transport errors can
// still extract something readable.
type rawEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

func parseEnvelope(body []byte) (rawEnvelope, bool) {
	var env rawEnvelope
	if len(body) == 0 {
		return env, false
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, false
	}
	return env, env.Success != nil
}

// extractMessage pulls a human readable reason out of an arbitrary error body.
func extractMessage(body []byte, status int) string {
	if env, _ := parseEnvelope(body); env.Message != "" || env.Error != "" {
		if env.Message != "" {
			return env.Message
		}
		return env.Error
	}
	text := strings.TrimSpace(string(body))
	if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

func decodeResult[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &apperr.TransportError{Message: "malformed result", Err: err}
	}
	return out, nil
}
