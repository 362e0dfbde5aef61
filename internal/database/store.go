package database

import (
	"context"
	"errors"

	"civic-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("concurrent modification")
	ErrDuplicate = errors.New("duplicate record")
)

// Issue ordering keys accepted by IssueFilter.Ordering.
const (
	OrderCreatedAsc    = "created_at"
	OrderCreatedDesc   = "-created_at"
	OrderPriorityAsc   = "priority_score"
	OrderPriorityDesc  = "-priority_score"
	DefaultIssuesOrder = OrderCreatedDesc
	DefaultIssuesLimit = 10
	MaxIssuesLimit     = 100
)

// IssueFilter narrows ListIssues. Zero values mean "no constraint".
type IssueFilter struct {
	ReportedBy *primitive.ObjectID
	AssignedTo *primitive.ObjectID
	Status     models.IssueStatus
	Category   models.IssueCategory
	Search     string
	Ordering   string
	Skip       int64
	Limit      int64
}

func ValidOrdering(ordering string) bool {
	switch ordering {
	case OrderCreatedAsc, OrderCreatedDesc, OrderPriorityAsc, OrderPriorityDesc:
		return true
	}
	return false
}

type IssueStore interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// UpdateIssue writes issue only if the stored version still equals
	// expectedVersion, and bumps issue.Version on success. A stale version
	// yields ErrConflict.
	UpdateIssue(ctx context.Context, issue *models.Issue, expectedVersion int64) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, int64, error)
	// ScanIssues calls fn for every stored issue until fn returns false.
	ScanIssues(ctx context.Context, fn func(*models.Issue) bool) error
	IssueStats(ctx context.Context) (*models.IssueStats, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// ListUsers returns all users, or only those with role when role is non-empty.
	ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type NotificationStore interface {
	CreateNotifications(ctx context.Context, notifications []*models.Notification) error
	GetNotification(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Store is everything the services need. WithTransaction runs fn so that
// writes made through the ctx it receives commit or roll back together.
type Store interface {
	IssueStore
	UserStore
	NotificationStore
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// Transactional reports whether WithTransaction undoes earlier writes
	// when fn fails.
	Transactional() bool
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
