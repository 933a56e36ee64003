// Package notify is the single place controller outcomes are surfaced:
// failures and confirmations alike go through a Notifier, never through a
// blocking prompt.
package notify

import (
	"errors"
	"sync"

	"hospops/internal/apperr"

	"github.com/rs/zerolog"
)

// Level of a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is one user-visible outcome.
type Notice struct {
	Level   Level
	Entity  string
	Action  string
	Message string
	Err     error
}

// Notifier surfaces notices. Implementations must not block for long; they
// are called from effect continuations.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Failure builds an error notice with a message for staff.
func Failure(entity, action string, err error) Notice {
	return Notice{Level: LevelError, Entity: entity, Action: action, Message: Message(err), Err: err}
}

// Success builds an info notice.
func Success(entity, action, message string) Notice {
	return Notice{Level: LevelInfo, Entity: entity, Action: action, Message: message}
}

// Message renders err for staff.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		verr *apperr.ValidationError
		ferr *apperr.RequestFailedError
	)
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		if errors.As(err, &verr) {
			return "입력값을 확인해 주세요: " + verr.Message
		}
		return "입력값을 확인해 주세요."
	case apperr.KindRateLimited:
		return "요청이 너무 잦습니다. 잠시 후 다시 시도해 주세요."
	case apperr.KindRequestFailed:
		if errors.As(err, &ferr) && ferr.Message != "" {
			return ferr.Message
		}
		return "요청을 처리하지 못했습니다."
	case apperr.KindTransport:
		return "서버와 통신할 수 없습니다."
	case apperr.KindCanceled:
		return "요청이 취소되었습니다."
	}
	return "알 수 없는 오류가 발생했습니다."
}

// Log writes notices to a zerolog logger.
type Log struct {
	logger *zerolog.Logger
}

func NewLog(logger *zerolog.Logger) *Log {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(n Notice) {
	var ev *zerolog.Event
	if n.Level == LevelError {
		ev = l.logger.Warn().Err(n.Err).Str("kind", string(apperr.KindOf(n.Err)))
	} else {
		ev = l.logger.Info()
	}
	ev.Str("entity", n.Entity).Str("action", n.Action).Msg(n.Message)
}

// Recorder keeps every notice; handy in tests and for the CLI's exit status.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of what was recorded.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Errors returns the recorded error notices.
func (r *Recorder) Errors() []Notice {
	var out []Notice
	for _, n := range r.Notices() {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}
