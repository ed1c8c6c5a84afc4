package audit

import (
	"context"
	"errors"
	"net/http"

	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Retrier re-drives an errored event through the router on operator demand.
type Retrier interface {
	Process(ctx context.Context, eventID uuid.UUID) error
}

// Handler serves the audit query API and the operator admin endpoints.
type Handler struct {
	repo    *Repository
	retrier Retrier
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository, retrier Retrier) *Handler {
	return &Handler{repo: repo, retrier: retrier}
}

// GetByCorrelation answers "what happened to event X": every sync log
// entry caused by one webhook event or job.
func (h *Handler) GetByCorrelation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	entries, err := h.repo.ListByCorrelation(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"correlationId": id, "entries": entries})
}

// ListLog returns recent sync log entries, optionally filtered by entity
// type and status.
func (h *Handler) ListLog(c *gin.Context) {
	entityType := c.Query("entityType")
	status := c.Query("status")

	entries, err := h.repo.List(c.Request.Context(), entityType, status, 200)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"entries": entries})
}

type quarantineRequest struct {
	EventID     string `json:"eventId" binding:"required"`
	EventSource string `json:"eventSource" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// QuarantineEvent excludes an event from all future processing without
// deleting it.
func (h *Handler) QuarantineEvent(c *gin.Context) {
	var req quarantineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "eventId, eventSource and reason are required", nil)
		return
	}
	id, err := uuid.Parse(req.EventID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	if err := h.repo.Quarantine(c.Request.Context(), id, req.EventSource, req.Reason); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"quarantined": true, "eventId": id})
}

// UnquarantineEvent lifts a quarantine so retries can reach the event
// again.
func (h *Handler) UnquarantineEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	if err := h.repo.Unquarantine(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotQuarantined) {
			httpkit.Error(c, http.StatusNotFound, "event not quarantined", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"quarantined": false, "eventId": id})
}

// ListQuarantined returns the quarantine ledger.
func (h *Handler) ListQuarantined(c *gin.Context) {
	quarantined, err := h.repo.ListQuarantined(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"events": quarantined})
}

// RetryEvent re-runs the router for an errored event.
func (h *Handler) RetryEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	if err := h.retrier.Process(c.Request.Context(), id); err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			httpkit.Error(c, http.StatusNotFound, "event not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"retried": true, "eventId": id})
}
