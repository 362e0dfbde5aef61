package services

import (
	"context"
	"testing"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"
	"civic-tracker/internal/websocket"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *database.MemoryStore
	hub      *websocket.Hub
	notifier *NotificationService
	issues   *IssueService

	citizen models.Actor
	admin   models.Actor
	admin2  models.Actor
	worker  models.Actor
	worker2 models.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, database.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, store *database.MemoryStore) *testEnv {
	t.Helper()

	env := &testEnv{store: store, hub: websocket.NewHub(8)}
	t.Cleanup(env.hub.Shutdown)

	env.citizen = env.addUser(t, "citizen", models.RoleUser)
	env.admin = env.addUser(t, "admin", models.RoleAdmin)
	env.admin2 = env.addUser(t, "admin2", models.RoleAdmin)
	env.worker = env.addUser(t, "worker", models.RoleWorker)
	env.worker2 = env.addUser(t, "worker2", models.RoleWorker)
	env.wire(store)
	return env
}

// wire builds the services on top of s, which may wrap env.store.
func (e *testEnv) wire(s database.Store) {
	e.notifier = NewNotificationService(s, e.hub)
	e.issues = NewIssueService(s, e.notifier)
}

func (e *testEnv) addUser(t *testing.T, username string, role models.UserRole) models.Actor {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "x", Role: role}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user.Actor()
}

func (e *testEnv) report(t *testing.T, title string, category models.IssueCategory) *models.Issue {
	t.Helper()
	issue, err := e.issues.Create(context.Background(), e.citizen, CreateIssueInput{
		Title:       title,
		Description: "reported in a test",
		Category:    category,
		Latitude:    ptr(46.7558),
		Longitude:   ptr(33.3486),
	})
	require.NoError(t, err)
	return issue
}

func (e *testEnv) inbox(t *testing.T, actor models.Actor) []models.Notification {
	t.Helper()
	list, err := e.store.ListNotifications(context.Background(), actor.ID, false)
	require.NoError(t, err)
	return list
}

func (e *testEnv) reload(t *testing.T, issue *models.Issue) *models.Issue {
	t.Helper()
	fresh, err := e.store.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	return fresh
}

func (e *testEnv) assign(t *testing.T, issue *models.Issue, worker models.Actor) {
	t.Helper()
	_, err := e.issues.Update(context.Background(), e.admin, issue.ID, IssuePatch{
		AssignedTo: OptionalID{Set: true, Value: &worker.ID},
	})
	require.NoError(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
