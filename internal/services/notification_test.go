package services

import (
	"context"
	"encoding/json"
	"testing"

	"civic-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingPublisher struct {
	pushed []primitive.ObjectID
}

func (p *recordingPublisher) Publish(userID primitive.ObjectID, event interface{}) int {
	p.pushed = append(p.pushed, userID)
	return 0
}

func TestRecordDeduplicatesRecipients(t *testing.T) {
	env := newTestEnv(t)
	publisher := &recordingPublisher{}
	notifier := NewNotificationService(env.store, publisher)

	created, err := notifier.Record(context.Background(), Notice{
		Recipients: []primitive.ObjectID{env.admin.ID, env.worker.ID, env.admin.ID},
		Message:    "Water is off on Sadova street",
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, env.inbox(t, env.admin), 1)
	assert.Len(t, env.inbox(t, env.worker), 1)
	assert.Empty(t, publisher.pushed, "recording alone must not push")

	notifier.Push(created)
	assert.ElementsMatch(t, []primitive.ObjectID{env.admin.ID, env.worker.ID}, publisher.pushed)
}

func TestRecordKeepsEachNoticeSeparate(t *testing.T) {
	env := newTestEnv(t)
	issueID := primitive.NewObjectID()

	created, err := env.notifier.Record(context.Background(),
		Notice{Recipients: []primitive.ObjectID{env.admin.ID}, Message: "first", IssueID: &issueID},
		Notice{Recipients: []primitive.ObjectID{env.admin.ID, primitive.NilObjectID}, Message: "second"},
	)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NotNil(t, created[0].IssueID)
	assert.Equal(t, issueID, *created[0].IssueID)
	assert.Nil(t, created[1].IssueID)
	assert.Len(t, env.inbox(t, env.admin), 2)
}

func TestPushSucceedsWithoutSubscribers(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.notifier.Record(context.Background(), Notice{
		Recipients: []primitive.ObjectID{env.citizen.ID},
		Message:    "hello",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.False(t, created[0].IsRead)
	assert.False(t, created[0].ID.IsZero())

	env.notifier.Push(created)
	assert.Len(t, env.inbox(t, env.citizen), 1)
}

func TestRecordWithNoRecipients(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.notifier.Record(context.Background(), Notice{Message: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestPushFrameIsTheBareNotification(t *testing.T) {
	env := newTestEnv(t)
	sub := env.hub.Subscribe(env.citizen.ID)

	created, err := env.notifier.Record(context.Background(), Notice{
		Recipients: []primitive.ObjectID{env.citizen.ID},
		Message:    "hello",
	})
	require.NoError(t, err)
	env.notifier.Push(created)

	select {
	case raw := <-sub.C():
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Len(t, frame, 4)
		for _, key := range []string{"id", "message", "is_read", "created_at"} {
			assert.Contains(t, frame, key)
		}
		assert.Equal(t, created[0].ID.Hex(), frame["id"])
		assert.Equal(t, "hello", frame["message"])
		assert.Equal(t, false, frame["is_read"])
	default:
		t.Fatal("expected a live push")
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.report(t, "First", models.CategoryPothole)
	env.report(t, "Second", models.CategoryWater)

	count, err := env.notifier.UnreadCount(ctx, env.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	inbox, err := env.notifier.List(ctx, env.admin, false)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "New issue reported: Second", inbox[0].Message, "newest first")

	read, err := env.notifier.MarkRead(ctx, env.admin, inbox[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	count, err = env.notifier.UnreadCount(ctx, env.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	unread, err := env.notifier.List(ctx, env.admin, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, inbox[1].ID, unread[0].ID)

	// The other admin's copies are untouched.
	count, err = env.notifier.UnreadCount(ctx, env.admin2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestMarkReadByAnotherUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.report(t, "First", models.CategoryPothole)

	inbox := env.inbox(t, env.admin)
	require.Len(t, inbox, 1)

	for _, actor := range []models.Actor{env.admin2, env.citizen, env.worker} {
		_, err := env.notifier.MarkRead(ctx, actor, inbox[0].ID)
		assert.True(t, IsKind(err, KindAuthorization), "role %s: %v", actor.Role, err)
	}

	assert.False(t, env.inbox(t, env.admin)[0].IsRead)
}

func TestMarkReadUnknownNotification(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.notifier.MarkRead(context.Background(), env.admin, primitive.NewObjectID())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.report(t, "First", models.CategoryPothole)
	env.report(t, "Second", models.CategoryWater)

	updated, err := env.notifier.MarkAllRead(ctx, env.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err := env.notifier.UnreadCount(ctx, env.admin)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = env.notifier.UnreadCount(ctx, env.admin2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
