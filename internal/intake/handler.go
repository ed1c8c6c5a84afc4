package intake

import (
	"net/http"
	"strconv"

	"dialer_sync_backend/platform/httpkit"
	"dialer_sync_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles webhook intake HTTP requests.
type Handler struct {
	service *Service
	repo    *Repository
	val     *validator.Validator
}

// NewHandler creates a new intake handler.
func NewHandler(service *Service, repo *Repository, val *validator.Validator) *Handler {
	return &Handler{service: service, repo: repo, val: val}
}

// HandleWebhook admits a normalized webhook envelope.
// POST /api/v1/webhooks/:source
// Authenticated via X-Sync-Signature (set by middleware).
func (h *Handler) HandleWebhook(c *gin.Context) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	// The path parameter is authoritative; a body claiming another source
	// would bypass per-source signature verification.
	env.Source = c.Param("source")

	if err := h.val.Struct(env); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	result, err := h.service.Admit(c.Request.Context(), env)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusAccepted
	if !result.Admitted {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// ListEvents returns admitted events in a given status, oldest first.
// Operators use it to inspect the error backlog before retrying.
// GET /admin/events?status=error&limit=50
func (h *Handler) ListEvents(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		status = StatusError
	}
	switch status {
	case StatusPending, StatusProcessing, StatusDone, StatusError:
	default:
		httpkit.Error(c, http.StatusBadRequest, "unknown status", status)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	events, err := h.repo.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"status": status, "events": events})
}
