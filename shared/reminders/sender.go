package reminders

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// retryingSender paces and retries deliveries. Telegram answers 429 with a
// retry_after hint, which wins over the configured delay; 400 and 403 are
// final.
type retryingSender struct {
	next    Sender
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *zerolog.Logger
}

func (s *retryingSender) SendText(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		err := s.next.SendText(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := s.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch tgErr.Code {
			case http.StatusBadRequest, http.StatusForbidden:
				return err
			case http.StatusTooManyRequests:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			}
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying reminder send")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (s *retryingSender) delay(attempt int) time.Duration {
	d := s.retry.RetryDelays
	if len(d) == 0 {
		return time.Second
	}
	if attempt < len(d) {
		return d[attempt]
	}
	return d[len(d)-1]
}
