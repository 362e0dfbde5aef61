package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"civic-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindAuthorization: http.StatusForbidden,
	services.KindNotFound:      http.StatusNotFound,
	services.KindConflict:      http.StatusConflict,
}

// respondError renders a service error as {"error": kind, "message": reason}.
// Anything that is not a services.Error is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var serviceErr *services.Error
	if errors.As(err, &serviceErr) {
		status, ok := statusByKind[serviceErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   serviceErr.Kind,
			"message": serviceErr.Message,
		})
		return
	}

	_ = c.Error(err)
	logrus.WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("request_id"),
	}).WithError(err).Error("Request failed")

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Internal server error",
	})
}

// respondBindError reports a request body or query that failed to bind.
func respondBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[jsonFieldName(fe)] = describeFieldError(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.KindValidation,
			"message": "Invalid request data",
			"fields":  fields,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":   services.KindValidation,
		"message": "Invalid request data",
		"details": err.Error(),
	})
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be a latitude between -90 and 90"
	case "longitude":
		return "must be a longitude between -180 and 180"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
