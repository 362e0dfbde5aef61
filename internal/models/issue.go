// internal/models/issue.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IssueCategory string

type IssueStatus string

const (
	CategoryPothole     IssueCategory = "POTHOLE"
	CategoryGarbage     IssueCategory = "GARBAGE"
	CategoryStreetlight IssueCategory = "STREETLIGHT"
	CategoryWater       IssueCategory = "WATER"
	CategoryTraffic     IssueCategory = "TRAFFIC"
	CategoryOther       IssueCategory = "OTHER"
)

const (
	StatusPending    IssueStatus = "PENDING"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusResolved   IssueStatus = "RESOLVED"
)

type Issue struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    IssueCategory      `bson:"category" json:"category"`
	Status      IssueStatus        `bson:"status" json:"status"`

	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`

	PriorityScore int `bson:"priority_score" json:"priority_score"`

	ReportedBy primitive.ObjectID  `bson:"reported_by" json:"reported_by"`
	AssignedTo *primitive.ObjectID `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`

	// Version increments on every committed write; updates are conditional on it.
	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IssueStats is the dashboard aggregate over all issues.
type IssueStats struct {
	Total      int64                   `json:"total_issues"`
	Pending    int64                   `json:"pending"`
	InProgress int64                   `json:"in_progress"`
	Resolved   int64                   `json:"resolved"`
	ByCategory map[IssueCategory]int64 `json:"issues_by_category"`
	ByStatus   map[IssueStatus]int64   `json:"issues_by_status"`
}

func (c IssueCategory) IsValid() bool {
	switch c {
	case CategoryPothole, CategoryGarbage, CategoryStreetlight,
		CategoryWater, CategoryTraffic, CategoryOther:
		return true
	}
	return false
}

func (s IssueStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

var statusRank = map[IssueStatus]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusResolved:   2,
}

// CanAdvanceTo reports whether moving from s to next is forward or a no-op.
// Statuses only move forward and RESOLVED is terminal.
func (s IssueStatus) CanAdvanceTo(next IssueStatus) bool {
	from, ok1 := statusRank[s]
	to, ok2 := statusRank[next]
	if !ok1 || !ok2 {
		return false
	}
	return to >= from
}

func (i *Issue) IsResolved() bool {
	return i.Status == StatusResolved
}

func (i *Issue) IsInProgress() bool {
	return i.Status == StatusInProgress
}

func (i *Issue) IsReportedBy(userID primitive.ObjectID) bool {
	return i.ReportedBy == userID
}

func (i *Issue) IsAssignedTo(userID primitive.ObjectID) bool {
	return i.AssignedTo != nil && *i.AssignedTo == userID
}

// GetCategoryLabel returns the human readable category name.
func GetCategoryLabel(category IssueCategory) string {
	labels := map[IssueCategory]string{
		CategoryPothole:     "Pothole",
		CategoryGarbage:     "Garbage",
		CategoryStreetlight: "Street Light",
		CategoryWater:       "Water Leakage",
		CategoryTraffic:     "Traffic Signal",
		CategoryOther:       "Other",
	}
	if label, exists := labels[category]; exists {
		return label
	}
	return string(category)
}

// GetStatusLabel returns the human readable status name.
func GetStatusLabel(status IssueStatus) string {
	labels := map[IssueStatus]string{
		StatusPending:    "Pending",
		StatusInProgress: "In Progress",
		StatusResolved:   "Resolved",
	}
	if label, exists := labels[status]; exists {
		return label
	}
	return string(status)
}
