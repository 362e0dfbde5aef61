package services

import (
	"testing"

	"civic-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPriorityScore(t *testing.T) {
	cases := []struct {
		name     string
		category models.IssueCategory
		status   models.IssueStatus
		want     int
	}{
		{name: "pothole pending", category: models.CategoryPothole, status: models.StatusPending, want: 10},
		{name: "traffic pending", category: models.CategoryTraffic, status: models.StatusPending, want: 11},
		{name: "water in progress", category: models.CategoryWater, status: models.StatusInProgress, want: 8},
		{name: "other in progress", category: models.CategoryOther, status: models.StatusInProgress, want: 4},
		{name: "unknown pending", category: "SINKHOLE", status: models.StatusPending, want: 3},
		{name: "unknown in progress", category: "", status: models.StatusInProgress, want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PriorityScore(tc.category, tc.status))
		})
	}
}

func TestPriorityScoreResolvedIsAlwaysZero(t *testing.T) {
	categories := []models.IssueCategory{
		models.CategoryPothole, models.CategoryGarbage, models.CategoryStreetlight,
		models.CategoryWater, models.CategoryTraffic, models.CategoryOther, "UNKNOWN",
	}
	for _, c := range categories {
		assert.Zero(t, PriorityScore(c, models.StatusResolved), "category %s", c)
	}
}
