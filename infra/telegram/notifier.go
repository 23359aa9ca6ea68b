package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/notify"
)

// botClient is the slice of the Bot API the notifier needs. *tgbotapi.BotAPI
// satisfies it.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier executes delivery intents against the Telegram Bot API and feeds
// successful publishes back into the history manager.
type Notifier struct {
	bot   botClient
	mgr   *notify.Manager
	log   logger.Logger
	clock func() time.Time
}

// New connects to the Bot API with the given token.
func New(token string, mgr *notify.Manager, log logger.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting: %w", err)
	}
	return newWithClient(bot, mgr, log), nil
}

func newWithClient(bot botClient, mgr *notify.Manager, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop{}
	}
	return &Notifier{bot: bot, mgr: mgr, log: log, clock: time.Now}
}

// Execute runs the intents in order. Deletions that fail are logged and
// skipped; the message is already out of the tracked window. A failed
// publish is returned so the caller can retry on the next cycle.
func (n *Notifier) Execute(intents []model.Intent, group, fingerprint string) error {
	for _, intent := range intents {
		chatID, err := strconv.ParseInt(intent.Channel, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: channel %q is not a chat id: %w", intent.Channel, err)
		}
		switch intent.Type {
		case model.IntentDelete:
			msgID, err := strconv.Atoi(intent.Handle)
			if err != nil {
				n.log.Warnf("telegram: bad handle %q: %v", intent.Handle, err)
				continue
			}
			if _, err := n.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
				n.log.Warnf("telegram: deleting message %d: %v", msgID, err)
			}
		case model.IntentPublish:
			msg := tgbotapi.NewMessage(chatID, intent.Content)
			msg.ParseMode = tgbotapi.ModeHTML
			msg.DisableWebPagePreview = true
			sent, err := n.bot.Send(msg)
			if err != nil {
				return fmt.Errorf("telegram: sending to %s: %w", intent.Channel, err)
			}
			handle := strconv.Itoa(sent.MessageID)
			if err := n.mgr.RecordPublished(intent.Channel, handle, group, fingerprint, n.clock()); err != nil {
				n.log.Errorf("telegram: recording publish: %v", err)
			}
			if intent.Pin {
				pin := tgbotapi.PinChatMessageConfig{
					ChatID:              chatID,
					MessageID:           sent.MessageID,
					DisableNotification: true,
				}
				if _, err := n.bot.Request(pin); err != nil {
					n.log.Warnf("telegram: pinning message %d: %v", sent.MessageID, err)
				}
			}
		default:
			return fmt.Errorf("telegram: unknown intent type %q", intent.Type)
		}
	}
	return nil
}

// SendPhoto publishes a report image with a caption, returning the message
// handle.
func (n *Notifier) SendPhoto(channel string, image []byte, caption string) (string, error) {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram: channel %q is not a chat id: %w", channel, err)
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "report.png", Bytes: image})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	sent, err := n.bot.Send(photo)
	if err != nil {
		return "", fmt.Errorf("telegram: sending photo: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
