package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/notify"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

type fakeBot struct {
	nextID   int
	sent     []tgbotapi.MessageConfig
	deleted  []int
	pinned   []int
	sendErr  error
	requests int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	switch v := c.(type) {
	case tgbotapi.DeleteMessageConfig:
		f.deleted = append(f.deleted, v.MessageID)
	case tgbotapi.PinChatMessageConfig:
		f.pinned = append(f.pinned, v.MessageID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestExecutePublishesAndRecords(t *testing.T) {
	mgr := notify.NewManager(notify.Config{MaxMessages: 2}, store.NewMemoryStore(), nil)
	bot := &fakeBot{}
	n := newWithClient(bot, mgr, nil)
	n.clock = func() time.Time { return time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC) }

	intents, err := mgr.PublishSchedule("-100200300", "fp1", "<b>schedule</b>")
	if err != nil {
		t.Fatalf("publish schedule: %v", err)
	}
	if err := n.Execute(intents, "1.1", "fp1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(bot.sent) != 1 || bot.sent[0].Text != "<b>schedule</b>" {
		t.Fatalf("sent = %+v", bot.sent)
	}
	if bot.sent[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("parse mode = %q, want HTML", bot.sent[0].ParseMode)
	}
	if len(bot.pinned) != 1 {
		t.Fatalf("pinned = %v, schedule publishes must pin", bot.pinned)
	}
	recs := mgr.Records("-100200300")
	if len(recs) != 1 || recs[0].MessageHandle != "1" {
		t.Fatalf("records = %+v, want handle fed back", recs)
	}
}

func TestExecuteEvictionDeletesOldest(t *testing.T) {
	mgr := notify.NewManager(notify.Config{MaxMessages: 2}, store.NewMemoryStore(), nil)
	bot := &fakeBot{}
	n := newWithClient(bot, mgr, nil)

	for i, fp := range []string{"fp1", "fp2", "fp3"} {
		intents, err := mgr.PublishSchedule("-100200300", fp, "schedule")
		if err != nil {
			t.Fatalf("publish schedule %d: %v", i, err)
		}
		if err := n.Execute(intents, "1.1", fp); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	if len(bot.deleted) != 1 || bot.deleted[0] != 1 {
		t.Fatalf("deleted = %v, want the first message evicted", bot.deleted)
	}
	if len(mgr.Records("-100200300")) != 2 {
		t.Fatalf("window = %d, want 2", len(mgr.Records("-100200300")))
	}
}

func TestExecuteBadChannel(t *testing.T) {
	mgr := notify.NewManager(notify.Config{}, store.NewMemoryStore(), nil)
	n := newWithClient(&fakeBot{}, mgr, nil)
	err := n.Execute([]model.Intent{{Type: model.IntentPublish, Channel: "not-a-chat"}}, "1.1", "fp")
	if err == nil {
		t.Fatal("expected an error for a non-numeric channel")
	}
}
