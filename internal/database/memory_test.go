package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"civic-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIssue(title string, status models.IssueStatus, category models.IssueCategory, created time.Time) *models.Issue {
	return &models.Issue{
		Title:       title,
		Description: "description of " + title,
		Category:    category,
		Status:      status,
		ReportedBy:  primitive.NewObjectID(),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMemoryStore_IssueVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	issue := newIssue("Broken lamp", models.StatusPending, models.CategoryStreetlight, time.Now())
	require.NoError(t, store.CreateIssue(ctx, issue))
	assert.False(t, issue.ID.IsZero())
	assert.Equal(t, int64(1), issue.Version)

	first, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	second, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)

	first.Status = models.StatusInProgress
	require.NoError(t, store.UpdateIssue(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Title = "stale write"
	err = store.UpdateIssue(ctx, second, 1)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, "Broken lamp", stored.Title)

	_, err = store.GetIssue(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	missing := newIssue("ghost", models.StatusPending, models.CategoryOther, time.Now())
	missing.ID = primitive.NewObjectID()
	assert.ErrorIs(t, store.UpdateIssue(ctx, missing, 1), ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	worker := primitive.NewObjectID()
	issue := newIssue("Leak", models.StatusPending, models.CategoryWater, time.Now())
	issue.AssignedTo = &worker
	require.NoError(t, store.CreateIssue(ctx, issue))

	got, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	got.Title = "changed"
	*got.AssignedTo = primitive.NewObjectID()

	again, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leak", again.Title)
	assert.Equal(t, worker, *again.AssignedTo)
}

func TestMemoryStore_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	issue := newIssue("Pothole", models.StatusPending, models.CategoryPothole, time.Now())
	require.NoError(t, store.CreateIssue(ctx, issue))

	recipient := primitive.NewObjectID()
	boom := errors.New("boom")

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := store.GetIssue(ctx, issue.ID)
		require.NoError(t, err)
		current.Status = models.StatusResolved
		require.NoError(t, store.UpdateIssue(ctx, current, current.Version))

		require.NoError(t, store.CreateIssue(ctx, newIssue("created inside", models.StatusPending, models.CategoryOther, time.Now())))
		require.NoError(t, store.CreateNotifications(ctx, []*models.Notification{
			{UserID: recipient, Message: "rolled back"},
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)

	_, total, err := store.ListIssues(ctx, IssueFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	inbox, err := store.ListNotifications(ctx, recipient, false)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestMemoryStore_TransactionCommitAndNesting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	recipient := primitive.NewObjectID()

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		return store.WithTransaction(ctx, func(ctx context.Context) error {
			return store.CreateNotifications(ctx, []*models.Notification{
				{UserID: recipient, Message: "kept"},
			})
		})
	})
	require.NoError(t, err)

	count, err := store.CountUnread(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_NotificationsHiddenUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	recipient := primitive.NewObjectID()

	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.CreateNotifications(txCtx, []*models.Notification{
			{UserID: recipient, Message: "pending"},
		}))

		count, err := store.CountUnread(ctx, recipient)
		require.NoError(t, err)
		assert.Zero(t, count)

		list, err := store.ListNotifications(ctx, recipient, false)
		require.NoError(t, err)
		assert.Empty(t, list)
		return nil
	})
	require.NoError(t, err)

	list, err := store.ListNotifications(ctx, recipient, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pending", list[0].Message)
}

func TestMemoryStore_ListIssues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	reporter := primitive.NewObjectID()
	worker := primitive.NewObjectID()

	a := newIssue("Deep pothole on Main", models.StatusPending, models.CategoryPothole, base)
	a.ReportedBy = reporter
	a.PriorityScore = 3
	b := newIssue("Garbage pile", models.StatusInProgress, models.CategoryGarbage, base.Add(time.Hour))
	b.AssignedTo = &worker
	b.PriorityScore = 1
	c := newIssue("Second pothole", models.StatusResolved, models.CategoryPothole, base.Add(2*time.Hour))
	c.ReportedBy = reporter
	c.PriorityScore = 2
	for _, issue := range []*models.Issue{a, b, c} {
		require.NoError(t, store.CreateIssue(ctx, issue))
	}

	titles := func(issues []models.Issue) []string {
		out := make([]string, 0, len(issues))
		for _, i := range issues {
			out = append(out, i.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		filter IssueFilter
		want   []string
		total  int64
	}{
		{
			name:   "default newest first",
			filter: IssueFilter{},
			want:   []string{"Second pothole", "Garbage pile", "Deep pothole on Main"},
			total:  3,
		},
		{
			name:   "oldest first",
			filter: IssueFilter{Ordering: OrderCreatedAsc},
			want:   []string{"Deep pothole on Main", "Garbage pile", "Second pothole"},
			total:  3,
		},
		{
			name:   "highest priority first",
			filter: IssueFilter{Ordering: OrderPriorityDesc},
			want:   []string{"Deep pothole on Main", "Second pothole", "Garbage pile"},
			total:  3,
		},
		{
			name:   "by reporter",
			filter: IssueFilter{ReportedBy: &reporter},
			want:   []string{"Second pothole", "Deep pothole on Main"},
			total:  2,
		},
		{
			name:   "by assignee",
			filter: IssueFilter{AssignedTo: &worker},
			want:   []string{"Garbage pile"},
			total:  1,
		},
		{
			name:   "by status",
			filter: IssueFilter{Status: models.StatusResolved},
			want:   []string{"Second pothole"},
			total:  1,
		},
		{
			name:   "by category",
			filter: IssueFilter{Category: models.CategoryPothole, Ordering: OrderCreatedAsc},
			want:   []string{"Deep pothole on Main", "Second pothole"},
			total:  2,
		},
		{
			name:   "search is case insensitive",
			filter: IssueFilter{Search: "POTHOLE"},
			want:   []string{"Second pothole", "Deep pothole on Main"},
			total:  2,
		},
		{
			name:   "paging keeps the full total",
			filter: IssueFilter{Skip: 1, Limit: 1},
			want:   []string{"Garbage pile"},
			total:  3,
		},
		{
			name:   "skip past the end",
			filter: IssueFilter{Skip: 10, Limit: 5},
			want:   []string{},
			total:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, total, err := store.ListIssues(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Equal(t, tt.want, titles(issues))
		})
	}
}

func TestMemoryStore_IssueStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.CreateIssue(ctx, newIssue("a", models.StatusPending, models.CategoryPothole, now)))
	require.NoError(t, store.CreateIssue(ctx, newIssue("b", models.StatusPending, models.CategoryWater, now)))
	require.NoError(t, store.CreateIssue(ctx, newIssue("c", models.StatusResolved, models.CategoryWater, now)))

	stats, err := store.IssueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(0), stats.InProgress)
	assert.Equal(t, int64(1), stats.Resolved)
	assert.Equal(t, int64(2), stats.ByCategory[models.CategoryWater])
	assert.Equal(t, int64(1), stats.ByCategory[models.CategoryPothole])
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	worker := &models.User{Username: "worker", PasswordHash: "x", Role: models.RoleWorker}
	admin := &models.User{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, store.CreateUser(ctx, worker))
	require.NoError(t, store.CreateUser(ctx, admin))
	assert.False(t, worker.CreatedAt.IsZero())

	dup := &models.User{Username: "worker", PasswordHash: "y", Role: models.RoleUser}
	assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrDuplicate)

	byName, err := store.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byName.ID)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := store.ListUsers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "admin", all[0].Username)

	workers, err := store.ListUsers(ctx, models.RoleWorker)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, worker.ID, workers[0].ID)
}

func TestMemoryStore_Notifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	older := &models.Notification{UserID: owner, Message: "older", CreatedAt: fixed.Add(-time.Hour)}
	newer := &models.Notification{UserID: owner, Message: "newer", CreatedAt: fixed}
	foreign := &models.Notification{UserID: other, Message: "not yours", CreatedAt: fixed}
	require.NoError(t, store.CreateNotifications(ctx, []*models.Notification{older, newer, foreign}))

	list, err := store.ListNotifications(ctx, owner, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Message)
	assert.Equal(t, "older", list[1].Message)

	read, err := store.MarkRead(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	assert.Equal(t, fixed, *read.ReadAt)

	unread, err := store.ListNotifications(ctx, owner, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "newer", unread[0].Message)

	updated, err := store.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	count, err := store.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.CountUnread(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = store.MarkRead(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}
