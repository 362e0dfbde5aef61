package services

import "civic-tracker/internal/models"

const unknownCategoryBase = 1

var categoryBase = map[models.IssueCategory]int{
	models.CategoryPothole:     8,
	models.CategoryGarbage:     6,
	models.CategoryStreetlight: 5,
	models.CategoryWater:       7,
	models.CategoryTraffic:     9,
	models.CategoryOther:       3,
}

var statusOffset = map[models.IssueStatus]int{
	models.StatusPending:    2,
	models.StatusInProgress: 1,
}

// PriorityScore derives an issue's triage score. Resolved issues always score 0.
func PriorityScore(category models.IssueCategory, status models.IssueStatus) int {
	if status == models.StatusResolved {
		return 0
	}

	base, ok := categoryBase[category]
	if !ok {
		base = unknownCategoryBase
	}
	return base + statusOffset[status]
}
