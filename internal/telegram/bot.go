// Package telegram announces shopping list updates to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meal-planner-sync/internal/config"
	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/shopping"
)

const fetchTimeout = 30 * time.Second

// sender is the subset of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UpdateSource delivers shopping list update stamps.
type UpdateSource interface {
	Subscribe() *events.Subscription[int64]
}

// Bot pushes the refreshed shopping list to a chat after every update.
type Bot struct {
	api        sender
	chatID     int64
	store      shopping.Store
	classifier *shopping.Classifier
	logger     zerolog.Logger
}

// NewBot initializes the Telegram API client from the configuration.
func NewBot(cfg *config.Config, store shopping.Store, classifier *shopping.Classifier) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	b := newBot(api, cfg.TelegramChatID, store, classifier)
	b.logger.Info().Str("account", api.Self.UserName).Msg("telegram bot authorized")
	return b, nil
}

func newBot(api sender, chatID int64, store shopping.Store, classifier *shopping.Classifier) *Bot {
	if classifier == nil {
		classifier = shopping.NewClassifier(nil)
	}
	return &Bot{
		api:        api,
		chatID:     chatID,
		store:      store,
		classifier: classifier,
		logger:     log.With().Str("component", "telegram").Logger(),
	}
}

// Run announces every update from src until ctx is cancelled or src closes.
// Stamps that pile up while a message is being sent collapse into one.
func (b *Bot) Run(ctx context.Context, src UpdateSource) error {
	sub := src.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case stamp, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := b.Announce(ctx, stamp); err != nil {
				b.logger.Warn().Err(err).Int64("stamp", stamp).Msg("failed to announce shopping list update")
			}
		}
	}
}

// Announce fetches the current list and sends it to the chat.
func (b *Bot) Announce(ctx context.Context, stamp int64) error {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	list, err := b.store.Current(fetchCtx)
	if err != nil {
		return fmt.Errorf("failed to fetch shopping list: %w", err)
	}

	msg := tgbotapi.NewMessage(b.chatID, formatShoppingList(list, b.classifier, time.UnixMilli(stamp)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Debug().Int64("stamp", stamp).Int("items", list.Len()).Msg("shopping list announced")
	return nil
}

func formatShoppingList(list shopping.List, classifier *shopping.Classifier, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List updated*\n")
	sb.WriteString(fmt.Sprintf("_%s_\n\n", at.Format("2006-01-02 15:04")))

	if list.Len() == 0 {
		sb.WriteString("_The list is empty_\n")
		return sb.String()
	}

	for _, cat := range list.Categories() {
		items := list.ItemsByCategory[cat]
		if len(items) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("*%s*\n", escape(cat)))
		for _, item := range items {
			sb.WriteString("• ")
			sb.WriteString(escape(item.Name))
			if unit := item.UnitText(); unit != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", escape(unit)))
			}
			if classifier.IsManual(item) {
				sb.WriteString(" ✍️")
			}
			if item.IsChecked {
				sb.WriteString(" ✅")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
