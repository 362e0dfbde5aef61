package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civic-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on top of MongoDB collections.
type MongoStore struct {
	db            *MongoDB
	issues        *mongo.Collection
	users         *mongo.Collection
	notifications *mongo.Collection

	// transactions requires a replica set; without it, writes inside
	// WithTransaction run one by one and only the version check guards issues.
	transactions bool
}

func NewMongoStore(db *MongoDB, transactions bool) *MongoStore {
	return &MongoStore{
		db:            db,
		issues:        db.Database.Collection(IssuesCollection),
		users:         db.Database.Collection(UsersCollection),
		notifications: db.Database.Collection(NotificationsCollection),
		transactions:  transactions,
	}
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.db.Client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) Transactional() bool {
	return s.transactions
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func (s *MongoStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	issue.Version = 1

	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *MongoStore) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue: %w", err)
	}
	return &issue, nil
}

func (s *MongoStore) UpdateIssue(ctx context.Context, issue *models.Issue, expectedVersion int64) error {
	result, err := s.issues.UpdateOne(ctx,
		bson.M{"_id": issue.ID, "version": expectedVersion},
		bson.M{"$set": bson.M{
			"title":          issue.Title,
			"description":    issue.Description,
			"category":       issue.Category,
			"status":         issue.Status,
			"latitude":       issue.Latitude,
			"longitude":      issue.Longitude,
			"priority_score": issue.PriorityScore,
			"assigned_to":    issue.AssignedTo,
			"updated_at":     issue.UpdatedAt,
			"version":        expectedVersion + 1,
		}},
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := s.issues.CountDocuments(ctx, bson.M{"_id": issue.ID})
		if err != nil {
			return fmt.Errorf("count issue: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}

	issue.Version = expectedVersion + 1
	return nil
}

func issueQuery(filter IssueFilter) bson.M {
	query := bson.M{}

	if filter.ReportedBy != nil {
		query["reported_by"] = *filter.ReportedBy
	}
	if filter.AssignedTo != nil {
		query["assigned_to"] = *filter.AssignedTo
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := regexp.QuoteMeta(filter.Search)
		query["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	return query
}

func issueSort(ordering string) bson.D {
	switch ordering {
	case OrderCreatedAsc:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case OrderPriorityAsc:
		return bson.D{{Key: "priority_score", Value: 1}, {Key: "_id", Value: -1}}
	case OrderPriorityDesc:
		return bson.D{{Key: "priority_score", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func (s *MongoStore) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, int64, error) {
	query := issueQuery(filter)

	findOptions := options.Find().SetSort(issueSort(filter.Ordering))
	if filter.Skip > 0 {
		findOptions.SetSkip(filter.Skip)
	}
	if filter.Limit > 0 {
		findOptions.SetLimit(filter.Limit)
	}

	total, err := s.issues.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	cursor, err := s.issues.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("decode issues: %w", err)
	}
	return issues, total, nil
}

func (s *MongoStore) ScanIssues(ctx context.Context, fn func(*models.Issue) bool) error {
	cursor, err := s.issues.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var issue models.Issue
		if err := cursor.Decode(&issue); err != nil {
			return fmt.Errorf("decode issue: %w", err)
		}
		if !fn(&issue) {
			break
		}
	}
	return cursor.Err()
}

type groupCount struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (s *MongoStore) groupBy(ctx context.Context, field string) ([]groupCount, error) {
	pipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$" + field,
				"count": bson.M{"$sum": 1},
			},
		},
	}

	cursor, err := s.issues.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	var groups []groupCount
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode %s groups: %w", field, err)
	}
	return groups, nil
}

func (s *MongoStore) IssueStats(ctx context.Context) (*models.IssueStats, error) {
	statusGroups, err := s.groupBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	categoryGroups, err := s.groupBy(ctx, "category")
	if err != nil {
		return nil, err
	}

	stats := &models.IssueStats{
		ByCategory: make(map[models.IssueCategory]int64),
		ByStatus:   make(map[models.IssueStatus]int64),
	}
	for _, g := range statusGroups {
		stats.ByStatus[models.IssueStatus(g.ID)] = g.Count
		stats.Total += g.Count
	}
	for _, g := range categoryGroups {
		stats.ByCategory[models.IssueCategory(g.ID)] = g.Count
	}
	stats.Pending = stats.ByStatus[models.StatusPending]
	stats.InProgress = stats.ByStatus[models.StatusInProgress]
	stats.Resolved = stats.ByStatus[models.StatusResolved]
	return stats, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}

	cursor, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(notifications))
	for _, n := range notifications {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		docs = append(docs, n)
	}

	if _, err := s.notifications.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func (s *MongoStore) GetNotification(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	if err := s.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["is_read"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.notifications.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"is_read": false,
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := s.notifications.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err == nil {
		return &n, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either missing or already read.
		return s.GetNotification(ctx, id)
	}
	return nil, fmt.Errorf("mark notification read: %w", err)
}

func (s *MongoStore) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	result, err := s.notifications.UpdateMany(ctx, bson.M{
		"user_id": userID,
		"is_read": false,
	}, bson.M{
		"$set": bson.M{
			"is_read": true,
			"read_at": time.Now(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}
