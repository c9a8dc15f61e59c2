package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts opportunities and failed runs to one chat.
type Telegram struct {
	bot    sender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(_ context.Context, e Event) error {
	text := t.format(e)
	if text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) format(e Event) string {
	str := func(k string) string {
		v, _ := e.Data[k].(string)
		return html.EscapeString(v)
	}
	switch e.Type {
	case OpportunityFound:
		text := fmt.Sprintf("🔥 <b>%s</b>\n🏢 %s", str("title"), str("company"))
		if score, ok := e.Data["score"].(float64); ok {
			text += fmt.Sprintf("\n📈 match %.0f%%", score*100)
		}
		if u := str("url"); u != "" {
			text += fmt.Sprintf("\n🔗 <a href=\"%s\">Open posting</a>", u)
		}
		return text
	case RunFinished:
		errs, _ := e.Data["errors"].(int)
		if errs == 0 {
			return ""
		}
		return fmt.Sprintf("⚠️ <b>%s run finished with %d error(s)</b>\n%s", html.EscapeString(e.Run), errs, str("summary"))
	}
	return ""
}
