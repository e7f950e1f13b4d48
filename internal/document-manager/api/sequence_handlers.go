package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	taskDB "document-generator-service/internal/document-manager/db"
)

// SequenceHandler manages the ordered steps of document sequences.
type SequenceHandler struct {
	DB *gorm.DB
}

func NewSequenceHandler(db *gorm.DB) *SequenceHandler {
	return &SequenceHandler{DB: db}
}

type SequenceStepRequest struct {
	DocumentID        uint `json:"documento"`
	Order             int  `json:"orden"`
	DaysSincePrevious int  `json:"dias_desde_anterior"`
	Completed         bool `json:"completado"`
}

func (h *SequenceHandler) documentExists(ctx context.Context, c *app.RequestContext, id uint) bool {
	var count int64
	if err := h.DB.WithContext(ctx).Model(&taskDB.Document{}).Where("id = ?", id).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Error verifying document: " + err.Error()})
		return false
	}
	if count == 0 {
		c.JSON(http.StatusBadRequest, utils.H{"error": "El documento seleccionado no existe"})
		return false
	}
	return true
}

func (h *SequenceHandler) CreateStep(ctx context.Context, c *app.RequestContext) {
	var req SequenceStepRequest
	if !bindBody(c, sequenceRequestSchema, &req) {
		return
	}
	if !h.documentExists(ctx, c, req.DocumentID) {
		return
	}
	step := taskDB.SequenceStep{
		DocumentID:        req.DocumentID,
		Order:             req.Order,
		DaysSincePrevious: req.DaysSincePrevious,
		Completed:         req.Completed,
	}
	if err := h.DB.WithContext(ctx).Create(&step).Error; err != nil {
		respondError(c, "Failed to create sequence step", err)
		return
	}
	c.JSON(http.StatusCreated, step)
}

func (h *SequenceHandler) GetSteps(ctx context.Context, c *app.RequestContext) {
	var steps []taskDB.SequenceStep
	query := h.DB.WithContext(ctx).Model(&taskDB.SequenceStep{})
	if documentIDStr := c.Query("documento"); documentIDStr != "" {
		documentID, err := strconv.ParseUint(documentIDStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid documento query parameter"})
			return
		}
		query = query.Where("document_id = ?", uint(documentID))
	}
	if err := query.Order("document_id").Order("step_order").Find(&steps).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch sequence steps: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, steps)
}

func (h *SequenceHandler) GetStepByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var step taskDB.SequenceStep
	if err := h.DB.WithContext(ctx).First(&step, id).Error; err != nil {
		respondError(c, "Sequence step not found", err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *SequenceHandler) UpdateStep(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SequenceStepRequest
	if !bindBody(c, sequenceRequestSchema, &req) {
		return
	}
	var step taskDB.SequenceStep
	if err := h.DB.WithContext(ctx).First(&step, id).Error; err != nil {
		respondError(c, "Sequence step not found", err)
		return
	}
	if !h.documentExists(ctx, c, req.DocumentID) {
		return
	}
	updates := map[string]interface{}{
		"document_id":         req.DocumentID,
		"step_order":          req.Order,
		"days_since_previous": req.DaysSincePrevious,
		"completed":           req.Completed,
	}
	if err := h.DB.WithContext(ctx).Model(&step).Updates(updates).Error; err != nil {
		respondError(c, "Failed to update sequence step", err)
		return
	}
	if err := h.DB.WithContext(ctx).First(&step, id).Error; err != nil {
		respondError(c, "Failed to reload sequence step", err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (h *SequenceHandler) DeleteStep(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	// Hard delete so the (document, order) slot can be reused.
	result := h.DB.WithContext(ctx).Unscoped().Delete(&taskDB.SequenceStep{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to delete sequence step: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, "Sequence step not found", gorm.ErrRecordNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
