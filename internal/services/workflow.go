package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueService is the only path that mutates issues. Every mutation reads,
// validates and writes inside one store transaction with a version check;
// the resulting notifications are persisted in that same transaction and
// pushed live after it commits.
type IssueService struct {
	store    database.Store
	notifier *NotificationService
	now      func() time.Time
	log      *logrus.Entry
}

func NewIssueService(store database.Store, notifier *NotificationService) *IssueService {
	return &IssueService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "workflow"),
	}
}

type IssueQuery struct {
	Search   string
	Status   models.IssueStatus
	Category models.IssueCategory
	Ordering string
	Page     int64
	Limit    int64
}

type IssuePage struct {
	Issues []models.Issue `json:"issues"`
	Total  int64          `json:"total"`
	Page   int64          `json:"page"`
	Limit  int64          `json:"limit"`
}

func (s *IssueService) Create(ctx context.Context, actor models.Actor, in CreateIssueInput) (*models.Issue, error) {
	if !models.Allow(actor.Role, models.OpCreateIssue, false, false) {
		return nil, authorizationError("only citizens can report issues")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	issue := &models.Issue{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Status:      models.StatusPending,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		ReportedBy:  actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issue.PriorityScore = PriorityScore(issue.Category, issue.Status)

	var recorded []models.Notification
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.CreateIssue(ctx, issue); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}

		admins, err := s.adminIDs(ctx)
		if err != nil {
			return err
		}
		recorded, err = s.notifier.Record(ctx, Notice{
			Recipients: admins,
			Message:    fmt.Sprintf("New issue reported: %s", issue.Title),
			IssueID:    &issue.ID,
		})
		if err != nil {
			s.logOrphanedWrite(issue.ID, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Push(recorded)
	s.log.WithFields(logrus.Fields{
		"issue_id": issue.ID.Hex(),
		"user_id":  actor.ID.Hex(),
		"category": issue.Category,
	}).Info("Issue reported")

	return issue, nil
}

// Update applies a partial update according to the actor's role.
func (s *IssueService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch IssuePatch) (*models.Issue, error) {
	return s.mutate(ctx, id, func(ctx context.Context, issue *models.Issue) ([]Notice, error) {
		switch {
		case models.Allow(actor.Role, models.OpAdminUpdate, false, false):
			return s.applyAdminPatch(ctx, actor, issue, patch)
		case models.Allow(actor.Role, models.OpWorkerUpdate, false, issue.IsAssignedTo(actor.ID)):
			return s.applyWorkerPatch(ctx, actor, issue, patch)
		default:
			return nil, authorizationError("you are not allowed to update this issue")
		}
	})
}

// RequestResolution is the assigned worker's "done, please verify" action.
// A pending issue is first moved to IN_PROGRESS.
func (s *IssueService) RequestResolution(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Issue, error) {
	return s.mutate(ctx, id, func(ctx context.Context, issue *models.Issue) ([]Notice, error) {
		if !models.Allow(actor.Role, models.OpWorkerUpdate, false, issue.IsAssignedTo(actor.ID)) {
			return nil, authorizationError("only the assigned worker can request resolution")
		}
		if issue.IsResolved() {
			return nil, ErrIssueResolved
		}

		admins, err := s.adminIDs(ctx)
		if err != nil {
			return nil, err
		}

		var notices []Notice
		if issue.Status == models.StatusPending {
			issue.Status = models.StatusInProgress
			notices = append(notices, progressNotice(actor, issue, admins))
		}
		notices = append(notices, Notice{
			Recipients: admins,
			Message:    fmt.Sprintf("Worker %s requested resolution of issue: %s", actor.Username, issue.Title),
			IssueID:    &issue.ID,
		})
		return notices, nil
	})
}

func (s *IssueService) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, issueStoreError(err, id)
	}
	if !canView(actor, issue) {
		return nil, notFoundError("issue %s not found", id.Hex())
	}
	return issue, nil
}

// List returns the actor's view of issues: admins see everything, workers
// their assignments and citizens their own reports.
func (s *IssueService) List(ctx context.Context, actor models.Actor, q IssueQuery) (*IssuePage, error) {
	filter := database.IssueFilter{
		Search:   strings.TrimSpace(q.Search),
		Status:   q.Status,
		Category: q.Category,
		Ordering: q.Ordering,
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleWorker:
		filter.AssignedTo = &actor.ID
	case models.RoleUser:
		filter.ReportedBy = &actor.ID
	default:
		return nil, authorizationError("unknown role %q", actor.Role)
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, validationError("unknown status %q", filter.Status)
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, validationError("unknown category %q", filter.Category)
	}
	if filter.Ordering == "" {
		filter.Ordering = database.DefaultIssuesOrder
	}
	if !database.ValidOrdering(filter.Ordering) {
		return nil, validationError("ordering must be one of created_at, -created_at, priority_score, -priority_score")
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = database.DefaultIssuesLimit
	}
	if limit > database.MaxIssuesLimit {
		limit = database.MaxIssuesLimit
	}
	filter.Skip = (page - 1) * limit
	filter.Limit = limit

	issues, total, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}

	return &IssuePage{Issues: issues, Total: total, Page: page, Limit: limit}, nil
}

// mutate runs apply against a fresh copy of the issue and commits the result
// together with the notices it produced.
func (s *IssueService) mutate(ctx context.Context, id primitive.ObjectID, apply func(ctx context.Context, issue *models.Issue) ([]Notice, error)) (*models.Issue, error) {
	var (
		updated  *models.Issue
		recorded []models.Notification
	)

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		issue, err := s.store.GetIssue(ctx, id)
		if err != nil {
			return issueStoreError(err, id)
		}
		version := issue.Version
		previous := issue.Status

		notices, err := apply(ctx, issue)
		if err != nil {
			return err
		}

		issue.PriorityScore = PriorityScore(issue.Category, issue.Status)
		issue.UpdatedAt = s.now()
		if err := s.store.UpdateIssue(ctx, issue, version); err != nil {
			return issueStoreError(err, id)
		}

		recorded, err = s.notifier.Record(ctx, notices...)
		if err != nil {
			s.logOrphanedWrite(id, err)
			return err
		}

		if previous != issue.Status {
			s.log.WithFields(logrus.Fields{
				"issue_id": id.Hex(),
				"from":     previous,
				"to":       issue.Status,
			}).Info("Issue status changed")
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Push(recorded)
	return updated, nil
}

// logOrphanedWrite reports an issue write that stays committed although its
// notifications failed. Only stores without transactions get here.
func (s *IssueService) logOrphanedWrite(issueID primitive.ObjectID, err error) {
	if s.store.Transactional() {
		return
	}
	s.log.WithFields(logrus.Fields{
		"issue_id": issueID.Hex(),
	}).WithError(err).Error("Issue change saved without its notifications")
}

func (s *IssueService) applyAdminPatch(ctx context.Context, actor models.Actor, issue *models.Issue, patch IssuePatch) ([]Notice, error) {
	if len(patch.PriorityScore) > 0 {
		return nil, validationError("priority_score is derived and cannot be set")
	}
	if len(patch.ReportedBy) > 0 {
		return nil, validationError("reported_by cannot be changed")
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationError("title cannot be empty")
		}
		if len(title) > maxTitleLength {
			return nil, validationError("title must be at most %d characters", maxTitleLength)
		}
		issue.Title = title
	}
	if patch.Description != nil {
		issue.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		if !patch.Category.IsValid() {
			return nil, validationError("unknown category %q", *patch.Category)
		}
		issue.Category = *patch.Category
	}
	if patch.Latitude != nil || patch.Longitude != nil {
		lat, lng := issue.Latitude, issue.Longitude
		if patch.Latitude != nil {
			lat = *patch.Latitude
		}
		if patch.Longitude != nil {
			lng = *patch.Longitude
		}
		if err := validateCoordinates(lat, lng); err != nil {
			return nil, err
		}
		issue.Latitude, issue.Longitude = lat, lng
	}

	var notices []Notice

	if patch.AssignedTo.Set {
		previous := issue.AssignedTo
		if patch.AssignedTo.Value == nil {
			issue.AssignedTo = nil
		} else {
			worker, err := s.store.GetUser(ctx, *patch.AssignedTo.Value)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return nil, notFoundError("user %s not found", patch.AssignedTo.Value.Hex())
				}
				return nil, fmt.Errorf("get assignee: %w", err)
			}
			if !worker.IsWorker() {
				return nil, validationError("issues can only be assigned to workers, %s is %s", worker.Username, worker.Role)
			}
			assignee := worker.ID
			issue.AssignedTo = &assignee

			if previous == nil || *previous != assignee {
				notices = append(notices, Notice{
					Recipients: []primitive.ObjectID{assignee},
					Message:    fmt.Sprintf("You have been assigned issue: %s", issue.Title),
					IssueID:    &issue.ID,
				})
			}
		}
	}

	if patch.Status != nil {
		next := *patch.Status
		if !next.IsValid() {
			return nil, validationError("unknown status %q", next)
		}
		if !issue.Status.CanAdvanceTo(next) {
			return nil, conflictError("cannot move issue from %s back to %s", issue.Status, next)
		}
		wasResolved := issue.IsResolved()
		issue.Status = next

		if !wasResolved && issue.IsResolved() {
			notices = append(notices, Notice{
				Recipients: []primitive.ObjectID{issue.ReportedBy},
				Message:    fmt.Sprintf("Your issue has been resolved: %s", issue.Title),
				IssueID:    &issue.ID,
			})
		}
	}

	s.log.WithFields(logrus.Fields{
		"issue_id": issue.ID.Hex(),
		"user_id":  actor.ID.Hex(),
	}).Debug("Admin update applied")

	return notices, nil
}

func (s *IssueService) applyWorkerPatch(ctx context.Context, actor models.Actor, issue *models.Issue, patch IssuePatch) ([]Notice, error) {
	if patch.touchesDetails() || patch.AssignedTo.Set || len(patch.PriorityScore) > 0 || len(patch.ReportedBy) > 0 {
		return nil, authorizationError("workers can only update the status of an issue")
	}
	if patch.Status == nil {
		return nil, validationError("status is required")
	}
	if *patch.Status != models.StatusInProgress {
		return nil, authorizationError("workers can only move an issue to %s", models.StatusInProgress)
	}
	if !issue.Status.CanAdvanceTo(models.StatusInProgress) {
		return nil, conflictError("cannot move issue from %s back to %s", issue.Status, models.StatusInProgress)
	}

	if issue.IsInProgress() {
		return nil, nil
	}

	issue.Status = models.StatusInProgress
	admins, err := s.adminIDs(ctx)
	if err != nil {
		return nil, err
	}
	return []Notice{progressNotice(actor, issue, admins)}, nil
}

func progressNotice(actor models.Actor, issue *models.Issue, admins []primitive.ObjectID) Notice {
	return Notice{
		Recipients: admins,
		Message:    fmt.Sprintf("Worker %s started work on issue: %s", actor.Username, issue.Title),
		IssueID:    &issue.ID,
	}
}

func (s *IssueService) adminIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	admins, err := s.store.ListUsers(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.ID)
	}
	return ids, nil
}

func canView(actor models.Actor, issue *models.Issue) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleWorker:
		return issue.IsAssignedTo(actor.ID)
	case models.RoleUser:
		return issue.IsReportedBy(actor.ID)
	}
	return false
}

func issueStoreError(err error, id primitive.ObjectID) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return notFoundError("issue %s not found", id.Hex())
	case errors.Is(err, database.ErrConflict):
		return conflictError("issue %s was modified concurrently, reload and retry", id.Hex())
	}
	return fmt.Errorf("issue %s: %w", id.Hex(), err)
}
