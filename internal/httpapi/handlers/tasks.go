package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/agent-services/internal/common"
	"github.com/suPer8Hu/agent-services/internal/observability"
	"github.com/suPer8Hu/agent-services/internal/tasks"
)

const (
	taskServiceName    = "TaskManagement Agent"
	taskServiceVersion = "1.0.0"
)

func (h *Handler) ProcessTask(c *gin.Context) {
	var req tasks.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, h.TaskSvc.Process(c.Request.Context(), req))
}

func (h *Handler) TaskHealth(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": taskServiceName,
		"version": taskServiceVersion,
	}
	if h.Cache != nil {
		hasData, last := h.Cache.Status()
		cache := gin.H{"has_data": hasData, "last_update": nil}
		if !last.IsZero() {
			cache["last_update"] = last.UTC().Format(time.RFC3339)
		}
		body["cache"] = cache
	}
	if h.TaskSvc != nil {
		body["llm_available"] = h.TaskSvc.Available()
	}
	c.JSON(http.StatusOK, body)
}

// ListExtractions returns the newest persisted extractions for ?userId=.
func (h *Handler) ListExtractions(c *gin.Context) {
	if h.Records == nil {
		common.Fail(c, http.StatusServiceUnavailable, "extraction records are not configured")
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		common.Fail(c, http.StatusBadRequest, "userId is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid limit")
		return
	}

	recs, err := h.Records.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Error("list extractions failed", slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"extractions": recs})
}
