package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"civic-tracker/internal/middleware"
	"civic-tracker/internal/models"
	"civic-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

type IssueHandler struct {
	issues *services.IssueService
	nearby *services.NearbyService
}

type IssueListQuery struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Category string `form:"category"`
	Ordering string `form:"ordering"`
	Page     int64  `form:"page"`
	Limit    int64  `form:"limit"`
}

func NewIssueHandler(issues *services.IssueService, nearby *services.NearbyService) *IssueHandler {
	return &IssueHandler{issues: issues, nearby: nearby}
}

func (h *IssueHandler) CreateIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req services.CreateIssueInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := h.issues.Create(ctx, actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

func (h *IssueHandler) GetIssues(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var q IssueListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	page, err := h.issues.List(ctx, actor, services.IssueQuery{
		Search:   q.Search,
		Status:   models.IssueStatus(q.Status),
		Category: models.IssueCategory(q.Category),
		Ordering: q.Ordering,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *IssueHandler) GetIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := h.issues.Get(ctx, actor, issueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// UpdateIssue serves both PATCH and PUT; either way only the fields present
// in the body are changed.
func (h *IssueHandler) UpdateIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var patch services.IssuePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := h.issues.Update(ctx, actor, issueID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) RequestResolve(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := h.issues.RequestResolution(ctx, actor, issueID)
	if err != nil {
		// An already resolved issue is a bad request; version collisions stay 409.
		if errors.Is(err, services.ErrIssueResolved) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   services.ErrIssueResolved.Kind,
				"message": services.ErrIssueResolved.Message,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Resolution requested",
		"issue":   issue,
	})
}

func (h *IssueHandler) GetNearbyIssues(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	q, err := services.ParseNearbyQuery(c.Query("lat"), c.Query("lng"), c.Query("radius"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, err := h.nearby.Find(ctx, q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":    issues,
		"count":     len(issues),
		"radius_km": q.RadiusKm,
	})
}

func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "User not authenticated",
		})
		return models.Actor{}, false
	}
	return actor, true
}

func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.KindValidation,
			"message": "Invalid " + name,
		})
		return primitive.NilObjectID, false
	}
	return id, true
}
