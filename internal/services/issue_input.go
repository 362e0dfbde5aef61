package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"civic-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxTitleLength = 200

type CreateIssueInput struct {
	Title       string               `json:"title" binding:"required,max=200"`
	Description string               `json:"description" binding:"required"`
	Category    models.IssueCategory `json:"category" binding:"required,oneof=POTHOLE GARBAGE STREETLIGHT WATER TRAFFIC OTHER"`
	Latitude    *float64             `json:"latitude" binding:"required,latitude"`
	Longitude   *float64             `json:"longitude" binding:"required,longitude"`
}

// OptionalID distinguishes an absent JSON field from an explicit null.
type OptionalID struct {
	Set   bool
	Value *primitive.ObjectID
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return err
	}
	if hex == "" {
		o.Value = nil
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// IssuePatch is a partial update. Nil fields are left untouched.
// PriorityScore and ReportedBy are captured only to reject them.
type IssuePatch struct {
	Title       *string               `json:"title" binding:"omitempty,max=200"`
	Description *string               `json:"description"`
	Category    *models.IssueCategory `json:"category"`
	Status      *models.IssueStatus   `json:"status"`
	Latitude    *float64              `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *float64              `json:"longitude" binding:"omitempty,longitude"`
	AssignedTo  OptionalID            `json:"assigned_to"`

	PriorityScore json.RawMessage `json:"priority_score"`
	ReportedBy    json.RawMessage `json:"reported_by"`
}

func (p *IssuePatch) touchesDetails() bool {
	return p.Title != nil || p.Description != nil || p.Category != nil ||
		p.Latitude != nil || p.Longitude != nil
}

func (in *CreateIssueInput) validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return validationError("title is required")
	}
	if len(title) > maxTitleLength {
		return validationError("title must be at most %d characters", maxTitleLength)
	}
	if strings.TrimSpace(in.Description) == "" {
		return validationError("description is required")
	}
	if !in.Category.IsValid() {
		return validationError("unknown category %q", in.Category)
	}
	if in.Latitude == nil || in.Longitude == nil {
		return validationError("latitude and longitude are required")
	}
	return validateCoordinates(*in.Latitude, *in.Longitude)
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return validationError("latitude must be between -90 and 90")
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return validationError("longitude must be between -180 and 180")
	}
	return nil
}
