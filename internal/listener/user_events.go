package listener

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

// DefaultUserDeletedChannel is used when no channel is configured.
const DefaultUserDeletedChannel = "users.deleted"

type teacherDeactivator interface {
	DeactivateForTeacher(ctx context.Context, teacherID string) (int, error)
}

type adminForgetter interface {
	Forget(ctx context.Context, userID string)
}

// UserEventListener deactivates a teacher's templates when the account is deleted.
type UserEventListener struct {
	client    *redis.Client
	channel   string
	templates teacherDeactivator
	admins    adminForgetter
	logger    *zap.Logger
}

// NewUserEventListener wires the subscriber. client may be nil in tests that call HandleMessage directly.
func NewUserEventListener(client *redis.Client, channel string, templates teacherDeactivator, admins adminForgetter, logger *zap.Logger) *UserEventListener {
	if channel == "" {
		channel = DefaultUserDeletedChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserEventListener{client: client, channel: channel, templates: templates, admins: admins, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription channel closes.
func (l *UserEventListener) Run(ctx context.Context) error {
	if l.client == nil {
		return fmt.Errorf("user event listener requires redis")
	}
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.logger.Info("user event listener subscribed", zap.String("channel", l.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := l.HandleMessage(ctx, msg.Payload); err != nil {
				l.logger.Warn("user event not handled", zap.String("channel", l.channel), zap.Error(err))
			}
		}
	}
}

// HandleMessage processes one published payload.
func (l *UserEventListener) HandleMessage(ctx context.Context, payload string) error {
	var event models.UserDeletedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return fmt.Errorf("decode user deleted event: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("user deleted event missing user_id")
	}
	if l.admins != nil {
		l.admins.Forget(ctx, event.UserID)
	}
	if event.Role != models.RoleTeacher {
		return nil
	}

	count, err := l.templates.DeactivateForTeacher(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("deactivate templates for teacher %s: %w", event.UserID, err)
	}
	l.logger.Info("templates deactivated for deleted teacher",
		zap.String("teacher_id", event.UserID),
		zap.Int("templates", count),
	)
	return nil
}
