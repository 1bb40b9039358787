package schedule

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/collections-notifier/internal/model"
	scheduleService "github.com/jwalitptl/collections-notifier/internal/service/schedule"
)

type Handler struct {
	scheduler *scheduleService.Scheduler
}

func NewHandler(scheduler *scheduleService.Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sched := rg.Group("/scheduler")
	{
		sched.POST("/start", h.Start)
		sched.POST("/stop", h.Stop)
		sched.POST("/run", h.RunNow)
		sched.PUT("/config", h.Reconfigure)
		sched.GET("/status", h.Status)
	}
}

func (h *Handler) Start(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.scheduler.NextFireInfo()})
}

func (h *Handler) Stop(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.scheduler.NextFireInfo()})
}

func (h *Handler) RunNow(c *gin.Context) {
	report, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduleService.ErrSweepInFlight) {
			c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}

func (h *Handler) Reconfigure(c *gin.Context) {
	var cfg model.ScheduleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if err := h.scheduler.Reconfigure(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.scheduler.NextFireInfo()})
}

func (h *Handler) Status(c *gin.Context) {
	data := gin.H{"schedule": h.scheduler.NextFireInfo()}
	if report := h.scheduler.LastReport(); report != nil {
		data["last_report"] = report.Summary()
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}
