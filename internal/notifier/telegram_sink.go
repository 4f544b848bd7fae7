package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// ChatResolver находит Telegram чат пользователя
type ChatResolver interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, bool, error)
}

// MessageSender is the subset of *bot.Bot used for delivery.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type TelegramSink struct {
	sender  MessageSender
	chats   ChatResolver
	siteURL string
	logger  *zap.Logger
}

func NewTelegramSink(sender MessageSender, chats ChatResolver, siteURL string, logger *zap.Logger) *TelegramSink {
	return &TelegramSink{
		sender:  sender,
		chats:   chats,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, n model.Notification) error {
	chatID, ok, err := s.chats.TelegramChatID(ctx, n.RecipientUserID)
	if err != nil {
		return fmt.Errorf("resolve telegram chat: %w", err)
	}

	// Пользователь не привязал Telegram
	if !ok {
		s.logger.Debug("Telegram channel not linked, skipping", zap.Int64("user_id", n.RecipientUserID))
		return nil
	}

	_, err = s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      s.formatMessage(n),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

// typeEmoji возвращает emoji для типа уведомления
func typeEmoji(t model.NotificationType) string {
	emojis := map[model.NotificationType]string{
		model.NotificationPaymentSucceeded:  "✅",
		model.NotificationPaymentFailed:     "❌",
		model.NotificationBookingUpdate:     "📅",
		model.NotificationStarWishUpdate:    "⭐",
		model.NotificationExpertApplication: "🎓",
		model.NotificationNewReview:         "💬",
	}

	if emoji, ok := emojis[t]; ok {
		return emoji
	}
	return "🔔"
}

func (s *TelegramSink) formatMessage(n model.Notification) string {
	var sb strings.Builder
	sb.WriteString(typeEmoji(n.Type))
	sb.WriteString(" ")
	sb.WriteString(html.EscapeString(n.Message))

	if n.Link != nil && *n.Link != "" && s.siteURL != "" {
		fmt.Fprintf(&sb, "\n\n<a href=\"%s\">Open</a>", html.EscapeString(s.siteURL+*n.Link))
	}

	return sb.String()
}
