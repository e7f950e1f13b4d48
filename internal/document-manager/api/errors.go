package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/pkg/validation"
)

// statusFor maps core errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduling.ErrDocumentNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduling.ErrConflictingScheduleFields),
		errors.Is(err, scheduling.ErrAlreadyDelivered),
		errors.Is(err, scheduling.ErrInvalidSchedule),
		errors.Is(err, validation.ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, scheduling.ErrRenderFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *app.RequestContext, message string, err error) {
	c.JSON(statusFor(err), utils.H{"error": message + ": " + err.Error()})
}

// bindBody checks the raw body against schema and then decodes it into obj.
func bindBody(c *app.RequestContext, schema *validation.Schema, obj interface{}) bool {
	if err := schema.Validate(c.Request.Body()); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{
			"error":             "Invalid request payload",
			"validation_errors": err.Error(),
		})
		return false
	}
	if err := c.BindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request format: " + err.Error()})
		return false
	}
	return true
}

func parseID(c *app.RequestContext) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}
