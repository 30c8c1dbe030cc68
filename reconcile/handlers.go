package reconcile

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/gin-gonic/gin"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	Engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{Engine: engine}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/reconciliation")
	{
		api.POST("/events/:eventId/run", h.TriggerRun)
		api.POST("/events/:eventId/run-async", h.TriggerRunAsync)
		api.GET("/events/:eventId/stats", h.GetStats)
		api.GET("/events/:eventId/reports", h.ListReports)
		api.GET("/events/:eventId/discrepancies", h.ListDiscrepancies)
		api.GET("/events/:eventId/integrity", h.CheckIntegrity)
		api.POST("/events/:eventId/adjustments", h.CreateAdjustment)
		api.POST("/discrepancies/:id/resolve", h.ResolveDiscrepancy)
	}
	router.POST("/pubsub/reconciliation-run", h.HandleRunPush)
}

// TriggerRun runs reconciliation synchronously and returns the reports. When
// some platforms succeed and others fail, the completed reports come back with
// the error alongside.
func (h *Handler) TriggerRun(c *gin.Context) {
	eventId := c.Param("eventId")

	var req TriggerRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	reports, err := h.Engine.RunReconciliation(c.Request.Context(), eventId, &req)
	if err != nil {
		if len(reports) > 0 {
			c.JSON(http.StatusOK, gin.H{"reports": reports, "error": err.Error()})
			return
		}
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// TriggerRunAsync enqueues a run via Pub/Sub and returns immediately.
func (h *Handler) TriggerRunAsync(c *gin.Context) {
	eventId := c.Param("eventId")

	actor := "api"
	if name, ok := utils.GetActorNameFromContext(c.Request.Context()); ok && name != "" {
		actor = name
	}
	msgId, err := PublishRunRequest(c.Request.Context(), eventId, actor)
	if err != nil {
		config.LogError(h.Engine.log(), "reconcile", "TriggerRunAsync", "publish run request", eventId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue reconciliation run"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_id": msgId})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.Engine.GetEventStats(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListReports(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	reports, err := h.Engine.ListRecentReports(c.Request.Context(), c.Param("eventId"), limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *Handler) ListDiscrepancies(c *gin.Context) {
	discrepancies, err := h.Engine.ListUnresolvedDiscrepancies(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"discrepancies": discrepancies})
}

func (h *Handler) CheckIntegrity(c *gin.Context) {
	result, err := h.Engine.CheckEventIntegrity(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ResolveDiscrepancy(c *gin.Context) {
	var req ManualResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.Engine.ManuallyResolveDiscrepancy(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateAdjustment(c *gin.Context) {
	var req ManualAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sale, err := h.Engine.CreateManualAdjustment(c.Request.Context(), c.Param("eventId"), req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if sale == nil {
		c.JSON(http.StatusOK, gin.H{"status": "applied"})
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// HandleRunPush consumes the Pub/Sub push subscription. Malformed messages are
// acked so they never poison the subscription; transient run failures return
// 500 so Pub/Sub redelivers.
func (h *Handler) HandleRunPush(c *gin.Context) {
	// The push route skips session auth; a shared token on the subscription URL
	// keeps strangers out when configured.
	if want := strings.TrimSpace(os.Getenv("PUBSUB_VERIFICATION_TOKEN")); want != "" {
		if c.Query("token") != want {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	var envelope PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	var payload RunPubSubPayload
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil || payload.EventId == "" {
		config.LogError(h.Engine.log(), "reconcile", "HandleRunPush", "decode run payload", envelope.Message.ID, errors.New("malformed run payload"))
		c.Status(http.StatusNoContent)
		return
	}

	ctx := c.Request.Context()
	if payload.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
	}
	_, err := h.Engine.RunReconciliation(ctx, payload.EventId, nil)
	if err != nil {
		// Permanent conditions are acked; retrying cannot change them.
		if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrValidation) || errors.Is(err, utils.ErrRunInProgress) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, utils.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
