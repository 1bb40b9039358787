package obligation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/collections-notifier/internal/calendar"
	"github.com/jwalitptl/collections-notifier/internal/model"
	"github.com/jwalitptl/collections-notifier/internal/repository"
	apperrors "github.com/jwalitptl/collections-notifier/pkg/errors"
)

type Handler struct {
	repo  repository.ObligationRepository
	clock *calendar.Clock
}

func NewHandler(repo repository.ObligationRepository, clock *calendar.Clock) *Handler {
	return &Handler{repo: repo, clock: clock}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	obligations := rg.Group("/obligations")
	{
		obligations.GET("", h.ListOpen)
		obligations.POST("/:id/reset-markers", h.ResetMarkers)
	}
}

type openObligation struct {
	*model.Obligation
	ElapsedDays int `json:"elapsed_days"`
}

func (h *Handler) ListOpen(c *gin.Context) {
	obligations, err := h.repo.ListOpen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	out := make([]openObligation, 0, len(obligations))
	for _, ob := range obligations {
		elapsed, err := h.clock.ElapsedDays(ob.CreatedAt)
		if err != nil {
			continue
		}
		out = append(out, openObligation{Obligation: ob, ElapsedDays: elapsed})
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"obligations": out}})
}

// ResetMarkers clears every notification flag so a subsequent sweep
// re-evaluates the obligation from scratch. Support operation; audited.
func (h *Handler) ResetMarkers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		appErr := apperrors.BadRequest("invalid obligation ID", err)
		c.JSON(httpStatus(appErr), gin.H{"status": "error", "message": appErr.Message})
		return
	}

	if err := h.repo.ResetMarkers(c.Request.Context(), id); err != nil {
		c.JSON(httpStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	log.Info().
		Str("obligation_id", id.String()).
		Str("subject", c.GetString("subject")).
		Str("request_id", c.GetString("request_id")).
		Msg("notification markers reset")

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func httpStatus(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrNotFound:
			return http.StatusNotFound
		case apperrors.ErrBadRequest:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
