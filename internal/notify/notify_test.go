package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestMultiJoinsErrors(t *testing.T) {
	var got []EventType
	ok := Func(func(_ context.Context, e Event) error { got = append(got, e.Type); return nil })
	bad := Func(func(context.Context, Event) error { return errors.New("offline") })

	err := Multi{ok, nil, bad, ok}.Notify(context.Background(), NewEvent(RunStarted, uuid.New(), nil))
	assert.ErrorContains(t, err, "offline")
	assert.Equal(t, []EventType{RunStarted, RunStarted}, got)
}

func TestSendLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	bad := Func(func(context.Context, Event) error { return errors.New("offline") })

	Send(context.Background(), bad, NewEvent(RunFinished, uuid.New(), nil), zap.New(core))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification failed", logs.All()[0].Message)
}

func TestTelegramFormatsOpportunity(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42}

	err := tg.Notify(context.Background(), NewEvent(OpportunityFound, uuid.New(), map[string]any{
		"title": "React <Lead>", "company": "Acme", "score": 0.82, "url": "https://x.test/1",
	}))
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	msg := bot.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "React &lt;Lead&gt;")
	assert.Contains(t, msg.Text, "match 82%")
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestTelegramSkipsQuietEvents(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42}

	require.NoError(t, tg.Notify(context.Background(), NewEvent(RunStarted, uuid.New(), nil)))
	ok := NewEvent(RunFinished, uuid.New(), map[string]any{"errors": 0})
	require.NoError(t, tg.Notify(context.Background(), ok))
	assert.Empty(t, bot.sent)

	failed := NewEvent(RunFinished, uuid.New(), map[string]any{"errors": 2, "summary": "indeed: 403"})
	failed.Run = "hunt"
	require.NoError(t, tg.Notify(context.Background(), failed))
	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0].Text, "hunt run finished with 2 error(s)")
}

func TestNewTelegramValidates(t *testing.T) {
	_, err := NewTelegram("", 1)
	assert.Error(t, err)
}
