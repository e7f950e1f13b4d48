package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/route"
)

type Handlers struct {
	Documents *DocumentHandler
	Tasks     *TaskHandler
	Sequences *SequenceHandler
	Schedules *ScheduleHandler
}

func RegisterRoutes(r *route.Engine, hs Handlers) {
	documentGroup := r.Group("/documents")
	{
		documentGroup.POST("", hs.Documents.CreateDocument)
		documentGroup.GET("/:id", hs.Documents.GetDocumentByID)
	}
	taskGroup := r.Group("/tasks")
	{
		taskGroup.POST("", hs.Tasks.CreateTask)
		taskGroup.GET("", hs.Tasks.GetTasks)
		taskGroup.POST("/interval", hs.Tasks.ConfigureInterval)
		taskGroup.GET("/:id", hs.Tasks.GetTaskByID)
	}
	sequenceGroup := r.Group("/sequences")
	{
		sequenceGroup.POST("", hs.Sequences.CreateStep)
		sequenceGroup.GET("", hs.Sequences.GetSteps)
		sequenceGroup.GET("/:id", hs.Sequences.GetStepByID)
		sequenceGroup.PUT("/:id", hs.Sequences.UpdateStep)
		sequenceGroup.DELETE("/:id", hs.Sequences.DeleteStep)
	}
	r.GET("/schedules", hs.Schedules.GetSchedules)
	adminGroup := r.Group("/admin")
	adminGroup.POST("/scheduler/refresh", hs.Schedules.RefreshScheduler)

	r.GET("/ping", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(http.StatusOK, utils.H{"message": "pong"})
	})
}
