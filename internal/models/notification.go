package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	IssueID   *primitive.ObjectID `bson:"issue_id,omitempty" json:"issue_id,omitempty"`
	Message   string              `bson:"message" json:"message"`
	IsRead    bool                `bson:"is_read" json:"is_read"`
	ReadAt    *time.Time          `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
}

// PushEvent is the payload delivered over a user's live channel.
type PushEvent struct {
	ID        primitive.ObjectID `json:"id"`
	Message   string             `json:"message"`
	IsRead    bool               `json:"is_read"`
	CreatedAt time.Time          `json:"created_at"`
}

func (n *Notification) PushEvent() PushEvent {
	return PushEvent{
		ID:        n.ID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
