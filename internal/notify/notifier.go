// Package notify delivers user notifications by email, either inline or through a RabbitMQ
// queue drained by the notifier worker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/models"
)

// QueueName is the queue notifications are published to.
const QueueName = "notifications"

// Sender sends one email.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Publisher publishes a message to a queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// MailNotifier renders notifications and emails them.
type MailNotifier struct {
	sender Sender
	appURL string
	logger *zap.Logger
}

// NewMailNotifier creates a notifier that sends email through sender.
func NewMailNotifier(sender Sender, appURL string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{sender: sender, appURL: appURL, logger: logger}
}

// Notify renders and sends the notification. Users without an email address are skipped.
func (n *MailNotifier) Notify(ctx context.Context, notification models.Notification) error {
	if notification.Email == "" {
		n.logger.Debug("skipping notification without email", zap.String("userID", notification.UserID), zap.String("type", string(notification.Type)))
		return nil
	}
	subject, body, err := Render(notification, n.appURL)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, notification.Email, subject, body); err != nil {
		return fmt.Errorf("failed to email %s notification to user '%s': %w", notification.Type, notification.UserID, err)
	}
	n.logger.Info("notification sent", zap.String("userID", notification.UserID), zap.String("type", string(notification.Type)))
	return nil
}

// QueueNotifier publishes notifications for the notifier worker.
type QueueNotifier struct {
	publisher Publisher
}

// NewQueueNotifier creates a notifier that publishes to QueueName.
func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

// Notify publishes the notification as JSON.
func (n *QueueNotifier) Notify(ctx context.Context, notification models.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return n.publisher.Publish(ctx, QueueName, body)
}

// ErrMalformedNotification is returned for queue messages that are not notifications.
var ErrMalformedNotification = errors.New("malformed notification message")

// Handler decodes queued notifications and passes them to next. Malformed messages are
// logged and dropped so they are not redelivered forever.
func Handler(next core.Notifier, logger *zap.Logger) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var notification models.Notification
		if err := json.Unmarshal(body, &notification); err != nil || notification.Type == "" {
			logger.Error("dropping malformed notification", zap.ByteString("body", body), zap.Error(errors.Join(ErrMalformedNotification, err)))
			return nil
		}
		return next.Notify(ctx, notification)
	}
}

// LogNotifier only logs notifications. It is used when neither a broker nor SMTP is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements core.Notifier.
func (n *LogNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.logger.Info("notification not delivered, no delivery channel configured",
		zap.String("userID", notification.UserID),
		zap.String("type", string(notification.Type)))
	return nil
}
