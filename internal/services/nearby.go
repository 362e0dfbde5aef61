package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"
	"civic-tracker/internal/utils"
)

const DefaultNearbyRadiusKm = 5.0

type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// ParseNearbyQuery validates raw lat, lng and radius values. radius may be
// empty and defaults to DefaultNearbyRadiusKm.
func ParseNearbyQuery(lat, lng, radius string) (NearbyQuery, error) {
	q := NearbyQuery{RadiusKm: DefaultNearbyRadiusKm}

	var err error
	if q.Latitude, err = parseFloatParam("lat", lat); err != nil {
		return NearbyQuery{}, err
	}
	if q.Longitude, err = parseFloatParam("lng", lng); err != nil {
		return NearbyQuery{}, err
	}
	if err := validateCoordinates(q.Latitude, q.Longitude); err != nil {
		return NearbyQuery{}, err
	}

	if strings.TrimSpace(radius) != "" {
		if q.RadiusKm, err = parseFloatParam("radius", radius); err != nil {
			return NearbyQuery{}, err
		}
		if q.RadiusKm < 0 {
			return NearbyQuery{}, validationError("radius must not be negative")
		}
	}

	return q, nil
}

func parseFloatParam(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, validationError("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, validationError("%s must be a number", name)
	}
	return v, nil
}

type NearbyService struct {
	store database.IssueStore
}

func NewNearbyService(store database.IssueStore) *NearbyService {
	return &NearbyService{store: store}
}

// Find scans every issue and keeps those within q.RadiusKm of the point,
// closest first.
func (s *NearbyService) Find(ctx context.Context, q NearbyQuery) ([]models.Issue, error) {
	if err := validateCoordinates(q.Latitude, q.Longitude); err != nil {
		return nil, err
	}
	if q.RadiusKm < 0 || math.IsNaN(q.RadiusKm) {
		return nil, validationError("radius must not be negative")
	}

	type hit struct {
		issue    models.Issue
		distance float64
	}

	var hits []hit
	err := s.store.ScanIssues(ctx, func(issue *models.Issue) bool {
		d := utils.CalculateDistance(q.Latitude, q.Longitude, issue.Latitude, issue.Longitude)
		if d <= q.RadiusKm {
			hits = append(hits, hit{issue: *issue, distance: d})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan issues: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})

	found := make([]models.Issue, 0, len(hits))
	for _, h := range hits {
		found = append(found, h.issue)
	}
	return found, nil
}
