package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const telegramQueueSize = 64

// Telegram forwards error notices to an operations chat. Notify only
// enqueues; Start runs the sender.
type Telegram struct {
	sender TelegramSender
	chatID int64
	logger *zerolog.Logger
	queue  chan Notice
	// IncludeInfo also forwards success notices.
	IncludeInfo bool
}

func NewTelegram(sender TelegramSender, chatID int64, logger *zerolog.Logger) *Telegram {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Telegram{
		sender: sender,
		chatID: chatID,
		logger: logger,
		queue:  make(chan Notice, telegramQueueSize),
	}
}

func (t *Telegram) Notify(n Notice) {
	if n.Level != LevelError && !t.IncludeInfo {
		return
	}
	select {
	case t.queue <- n:
	default:
		t.logger.Warn().Str("entity", n.Entity).Str("action", n.Action).Msg("telegram queue full, notice dropped")
	}
}

// Start sends queued notices until ctx is done.
func (t *Telegram) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-t.queue:
				t.send(n)
			}
		}
	}()
}

func (t *Telegram) send(n Notice) {
	msg := tgbotapi.NewMessage(t.chatID, FormatTelegram(n))
	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("telegram send failed")
	}
}

// SendText posts text to the operations chat right away.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.sender.Send(tgbotapi.NewMessage(t.chatID, text))
	return err
}

// SendDocument uploads a file to the operations chat. It sends directly,
// bypassing the notice queue.
func (t *Telegram) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if _, err := t.sender.Send(doc); err != nil {
		t.logger.Error().Err(err).Str("filename", filename).Msg("telegram document upload failed")
		return err
	}
	return nil
}

// FormatTelegram renders a notice as a plain text chat message.
func FormatTelegram(n Notice) string {
	var b strings.Builder
	if n.Level == LevelError {
		b.WriteString("[오류] ")
	} else {
		b.WriteString("[알림] ")
	}
	fmt.Fprintf(&b, "%s %s: %s", n.Entity, n.Action, n.Message)
	if n.Err != nil {
		fmt.Fprintf(&b, "\n%v", n.Err)
	}
	return b.String()
}
