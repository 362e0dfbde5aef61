package services

import (
	"context"
	"fmt"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"
)

type DashboardService struct {
	store database.IssueStore
}

func NewDashboardService(store database.IssueStore) *DashboardService {
	return &DashboardService{store: store}
}

// Stats returns issue counts for the admin dashboard. Every known status and
// category is present in the result, zero when no issue has it.
func (s *DashboardService) Stats(ctx context.Context, actor models.Actor) (*models.IssueStats, error) {
	if !models.Allow(actor.Role, models.OpViewDashboard, false, false) {
		return nil, authorizationError("only administrators can view the dashboard")
	}

	stats, err := s.store.IssueStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue stats: %w", err)
	}

	if stats.ByStatus == nil {
		stats.ByStatus = make(map[models.IssueStatus]int64)
	}
	if stats.ByCategory == nil {
		stats.ByCategory = make(map[models.IssueCategory]int64)
	}
	for _, status := range []models.IssueStatus{models.StatusPending, models.StatusInProgress, models.StatusResolved} {
		if _, ok := stats.ByStatus[status]; !ok {
			stats.ByStatus[status] = 0
		}
	}
	for _, category := range []models.IssueCategory{
		models.CategoryPothole, models.CategoryGarbage, models.CategoryStreetlight,
		models.CategoryWater, models.CategoryTraffic, models.CategoryOther,
	} {
		if _, ok := stats.ByCategory[category]; !ok {
			stats.ByCategory[category] = 0
		}
	}

	return stats, nil
}
