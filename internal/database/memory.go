package database

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civic-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps everything in process. Transactions are serialized with
// one another and roll back by replaying an undo journal; plain reads never
// wait on a transaction. Notifications created in a transaction are staged
// and only become visible when it commits.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	issues        map[primitive.ObjectID]*models.Issue
	users         map[primitive.ObjectID]*models.User
	notifications map[primitive.ObjectID]*models.Notification

	now func() time.Time
}

type memoryTx struct {
	undo   []func()
	staged []*models.Notification
}

type memoryTxKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:        make(map[primitive.ObjectID]*models.Issue),
		users:         make(map[primitive.ObjectID]*models.User),
		notifications: make(map[primitive.ObjectID]*models.Notification),
		now:           time.Now,
	}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(memoryTxKey{}).(*memoryTx); nested {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{}
	err := fn(context.WithValue(ctx, memoryTxKey{}, tx))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	for _, n := range tx.staged {
		s.notifications[n.ID] = n
	}
	return nil
}

// journal records how to revert a write. Callers hold s.mu.
func (s *MemoryStore) journal(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *MemoryStore) Transactional() bool {
	return true
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func cloneIssue(i *models.Issue) *models.Issue {
	c := *i
	if i.AssignedTo != nil {
		assignee := *i.AssignedTo
		c.AssignedTo = &assignee
	}
	return &c
}

func (s *MemoryStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, exists := s.issues[issue.ID]; exists {
		return ErrDuplicate
	}
	issue.Version = 1

	id := issue.ID
	s.issues[id] = cloneIssue(issue)
	s.journal(ctx, func() { delete(s.issues, id) })
	return nil
}

func (s *MemoryStore) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIssue(issue), nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, issue *models.Issue, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.issues[issue.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}

	issue.Version = expectedVersion + 1
	s.issues[issue.ID] = cloneIssue(issue)
	s.journal(ctx, func() { s.issues[current.ID] = current })
	return nil
}

func (s *MemoryStore) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, int64, error) {
	s.mu.RLock()
	var matched []models.Issue
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, issue := range s.issues {
		if filter.ReportedBy != nil && issue.ReportedBy != *filter.ReportedBy {
			continue
		}
		if filter.AssignedTo != nil && !issue.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.Status != "" && issue.Status != filter.Status {
			continue
		}
		if filter.Category != "" && issue.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(issue.Title), search) &&
			!strings.Contains(strings.ToLower(issue.Description), search) {
			continue
		}
		matched = append(matched, *cloneIssue(issue))
	}
	s.mu.RUnlock()

	sortIssues(matched, filter.Ordering)

	total := int64(len(matched))
	if filter.Skip > 0 {
		if filter.Skip >= total {
			return []models.Issue{}, total, nil
		}
		matched = matched[filter.Skip:]
	}
	if filter.Limit > 0 && int64(len(matched)) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	if matched == nil {
		matched = []models.Issue{}
	}
	return matched, total, nil
}

func sortIssues(issues []models.Issue, ordering string) {
	if ordering == "" {
		ordering = DefaultIssuesOrder
	}
	less := func(a, b *models.Issue) bool {
		switch ordering {
		case OrderCreatedAsc:
			return a.CreatedAt.Before(b.CreatedAt)
		case OrderPriorityAsc:
			return a.PriorityScore < b.PriorityScore
		case OrderPriorityDesc:
			return a.PriorityScore > b.PriorityScore
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := &issues[i], &issues[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		// ObjectIDs grow with insertion time, newest first on ties.
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
}

func (s *MemoryStore) ScanIssues(ctx context.Context, fn func(*models.Issue) bool) error {
	s.mu.RLock()
	snapshot := make([]*models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		snapshot = append(snapshot, cloneIssue(issue))
	}
	s.mu.RUnlock()

	for _, issue := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(issue) {
			break
		}
	}
	return nil
}

func (s *MemoryStore) IssueStats(ctx context.Context) (*models.IssueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.IssueStats{
		ByCategory: make(map[models.IssueCategory]int64),
		ByStatus:   make(map[models.IssueStatus]int64),
	}
	for _, issue := range s.issues {
		stats.Total++
		stats.ByCategory[issue.Category]++
		stats.ByStatus[issue.Status]++
	}
	stats.Pending = stats.ByStatus[models.StatusPending]
	stats.InProgress = stats.ByStatus[models.StatusInProgress]
	stats.Resolved = stats.ByStatus[models.StatusResolved]
	return stats, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}

	stored := *user
	s.users[user.ID] = &stored
	id := user.ID
	s.journal(ctx, func() { delete(s.users, id) })
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			u := *user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	s.mu.RLock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		if role != "" && user.Role != role {
			continue
		}
		users = append(users, *user)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *MemoryStore) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	tx, inTx := ctx.Value(memoryTxKey{}).(*memoryTx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		stored := *n
		if inTx {
			tx.staged = append(tx.staged, &stored)
			continue
		}
		s.notifications[n.ID] = &stored
	}
	return nil
}

func (s *MemoryStore) GetNotification(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *n
	return &c, nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	result := []models.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) > 0
	})
	return result, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !n.IsRead {
		prev := *n
		now := s.now()
		n.IsRead = true
		n.ReadAt = &now
		s.journal(ctx, func() { *s.notifications[id] = prev })
	}
	c := *n
	return &c, nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var updated int64
	for id, n := range s.notifications {
		if n.UserID != userID || n.IsRead {
			continue
		}
		prev := *n
		n.IsRead = true
		n.ReadAt = &now
		updated++
		nid := id
		s.journal(ctx, func() { *s.notifications[nid] = prev })
	}
	return updated, nil
}
