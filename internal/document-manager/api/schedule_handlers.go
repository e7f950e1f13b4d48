package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/schedules"
	"document-generator-service/internal/document-manager/services"
)

type ScheduleLister interface {
	List(ctx context.Context) ([]taskDB.PeriodicSchedule, error)
}

// Engine is the part of the scheduler service the admin endpoints use.
type Engine interface {
	ScheduledJobs() map[string]services.ScheduledJob
	RefreshScheduledJobs() error
}

type ScheduleHandler struct {
	Store  ScheduleLister
	Engine Engine
}

func NewScheduleHandler(store ScheduleLister, engine Engine) *ScheduleHandler {
	return &ScheduleHandler{Store: store, Engine: engine}
}

// ScheduleView is a registered descriptor with its live engine state.
type ScheduleView struct {
	Name          string     `json:"name"`
	Every         int        `json:"every"`
	Period        string     `json:"period"`
	Task          string     `json:"task"`
	Args          []uint     `json:"args"`
	Enabled       bool       `json:"enabled"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	TotalRunCount int        `json:"total_run_count"`
	Scheduled     bool       `json:"scheduled"`
	NextRun       *time.Time `json:"next_run,omitempty"`
}

func (h *ScheduleHandler) GetSchedules(ctx context.Context, c *app.RequestContext) {
	rows, err := h.Store.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch schedules: " + err.Error()})
		return
	}
	var live map[string]services.ScheduledJob
	if h.Engine != nil {
		live = h.Engine.ScheduledJobs()
	}
	views := make([]ScheduleView, 0, len(rows))
	for _, row := range rows {
		view := ScheduleView{
			Name:          row.Name,
			Every:         row.Every,
			Period:        row.Period,
			Task:          row.Task,
			Enabled:       row.Enabled,
			LastRunAt:     row.LastRunAt,
			TotalRunCount: row.TotalRunCount,
		}
		if d, err := schedules.Descriptor(row); err == nil {
			view.Args = d.Args
		}
		if job, ok := live[row.Name]; ok {
			view.Scheduled = true
			view.NextRun = job.NextRun
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

func (h *ScheduleHandler) RefreshScheduler(ctx context.Context, c *app.RequestContext) {
	if err := h.Engine.RefreshScheduledJobs(); err != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Scheduler refresh failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, utils.H{"message": "Scheduler refresh triggered"})
}
