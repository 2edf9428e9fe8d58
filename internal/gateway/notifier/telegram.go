package notifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessageLen = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram 把文本推送到指定会话，超长消息按行拆分。
type Telegram struct {
	api    sender
	chatID int64
}

func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(botToken) == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot_token and chat_id are required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) SendText(text string) error {
	var firstErr error
	for _, part := range splitMessage(text, maxTelegramMessageLen) {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := t.api.Send(msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telegram send: %w", err)
		}
	}
	return firstErr
}

func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLength {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := maxLength
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+len(line)+1 > maxLength {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
