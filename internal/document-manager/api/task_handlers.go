package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/scheduling"
)

// TaskScheduler is the part of the scheduler core the task endpoints drive.
type TaskScheduler interface {
	CreateTask(ctx context.Context, task *taskDB.Task) error
	ConfigureInterval(ctx context.Context, documentID uint, minutes *int) (*taskDB.Task, scheduling.Descriptor, error)
}

// SyncRequester asks the execution engine to pick up registration changes.
type SyncRequester interface {
	RequestSync()
}

type TaskHandler struct {
	DB        *gorm.DB
	Scheduler TaskScheduler
	Syncer    SyncRequester
	log       zerolog.Logger
}

func NewTaskHandler(db *gorm.DB, scheduler TaskScheduler, syncer SyncRequester, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{DB: db, Scheduler: scheduler, Syncer: syncer, log: logger.With().Str("handler", "tasks").Logger()}
}

func (h *TaskHandler) requestSync() {
	if h.Syncer != nil {
		h.Syncer.RequestSync()
	}
}

type CreateTaskRequest struct {
	DocumentID      uint `json:"documento"`
	Interval        *int `json:"intervalo"`
	PeriodicityDays *int `json:"periodicidad_dias"`
}

// ConfigureIntervalRequest carries the ad-hoc interval in minutes.
type ConfigureIntervalRequest struct {
	DocumentID uint `json:"documento"`
	Interval   *int `json:"intervalo"`
}

func (h *TaskHandler) CreateTask(ctx context.Context, c *app.RequestContext) {
	var req CreateTaskRequest
	if !bindBody(c, taskRequestSchema, &req) {
		return
	}
	task := taskDB.Task{DocumentID: req.DocumentID, Interval: req.Interval, PeriodicityDays: req.PeriodicityDays}
	if err := h.Scheduler.CreateTask(ctx, &task); err != nil {
		h.log.Warn().Err(err).Uint("document_id", req.DocumentID).Msg("Task rejected")
		respondError(c, "Failed to create task", err)
		return
	}
	h.requestSync()
	c.JSON(http.StatusCreated, task)
}

// ConfigureInterval is the ad-hoc minute schedule endpoint.
func (h *TaskHandler) ConfigureInterval(ctx context.Context, c *app.RequestContext) {
	var req ConfigureIntervalRequest
	if !bindBody(c, intervalRequestSchema, &req) {
		return
	}
	task, d, err := h.Scheduler.ConfigureInterval(ctx, req.DocumentID, req.Interval)
	if err != nil {
		h.log.Warn().Err(err).Uint("document_id", req.DocumentID).Msg("Interval not configured")
		respondError(c, "Failed to configure interval", err)
		return
	}
	h.requestSync()
	c.JSON(http.StatusOK, utils.H{
		"message":  "Tarea programada correctamente",
		"task":     task,
		"schedule": d.Name,
		"every":    d.Every,
		"period":   d.Unit,
	})
}

func (h *TaskHandler) GetTasks(ctx context.Context, c *app.RequestContext) {
	var tasks []taskDB.Task
	query := h.DB.WithContext(ctx).Model(&taskDB.Task{})
	if documentIDStr := c.Query("documento"); documentIDStr != "" {
		documentID, err := strconv.ParseUint(documentIDStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid documento query parameter"})
			return
		}
		query = query.Where("document_id = ?", uint(documentID))
	}
	if result := query.Order("id").Find(&tasks); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch tasks: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var task taskDB.Task
	if err := h.DB.WithContext(ctx).First(&task, id).Error; err != nil {
		respondError(c, "Task not found", err)
		return
	}
	c.JSON(http.StatusOK, task)
}
