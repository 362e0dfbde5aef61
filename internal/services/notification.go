package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Publisher pushes an event onto a user's live channel without blocking.
type Publisher interface {
	Publish(userID primitive.ObjectID, event interface{}) int
}

// Notice is one logical event: the same message for a set of recipients.
type Notice struct {
	Recipients []primitive.ObjectID
	Message    string
	IssueID    *primitive.ObjectID
}

type NotificationService struct {
	store     database.NotificationStore
	publisher Publisher
	now       func() time.Time
	log       *logrus.Entry
}

func NewNotificationService(store database.NotificationStore, publisher Publisher) *NotificationService {
	return &NotificationService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		log:       logrus.WithField("component", "notifications"),
	}
}

// Record persists the notices. Call it inside the transaction of the
// mutation that caused them; call Push after that transaction commits.
func (ns *NotificationService) Record(ctx context.Context, notices ...Notice) ([]models.Notification, error) {
	now := ns.now()

	var rows []*models.Notification
	for _, notice := range notices {
		seen := make(map[primitive.ObjectID]struct{}, len(notice.Recipients))
		for _, userID := range notice.Recipients {
			if userID.IsZero() {
				continue
			}
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}

			rows = append(rows, &models.Notification{
				UserID:    userID,
				IssueID:   notice.IssueID,
				Message:   notice.Message,
				IsRead:    false,
				CreatedAt: now,
			})
		}
	}

	if len(rows) == 0 {
		return nil, nil
	}

	if err := ns.store.CreateNotifications(ctx, rows); err != nil {
		return nil, fmt.Errorf("save notifications: %w", err)
	}

	created := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		created = append(created, *row)
	}
	return created, nil
}

// Push is best effort: offline users and full buffers are skipped.
func (ns *NotificationService) Push(notifications []models.Notification) {
	if ns.publisher == nil {
		return
	}
	for i := range notifications {
		n := &notifications[i]
		if ns.publisher.Publish(n.UserID, n.PushEvent()) == 0 {
			ns.log.WithFields(logrus.Fields{
				"user_id":         n.UserID.Hex(),
				"notification_id": n.ID.Hex(),
			}).Debug("Live push not delivered")
		}
	}
}

func (ns *NotificationService) List(ctx context.Context, actor models.Actor, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := ns.store.ListNotifications(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (ns *NotificationService) UnreadCount(ctx context.Context, actor models.Actor) (int64, error) {
	count, err := ns.store.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead flips is_read for a notification the actor received.
func (ns *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Notification, error) {
	n, err := ns.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFoundError("notification %s not found", id.Hex())
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}

	if !models.Allow(actor.Role, models.OpModifyNotification, n.UserID == actor.ID, false) {
		return nil, authorizationError("you cannot modify this notification")
	}

	updated, err := ns.store.MarkRead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

func (ns *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	updated, err := ns.store.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return updated, nil
}
