package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/agent-services/internal/chat"
	"github.com/suPer8Hu/agent-services/internal/common"
	"github.com/suPer8Hu/agent-services/internal/observability"
)

type chatReq struct {
	Message   string         `json:"message" binding:"required"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	reply, err := h.ChatSvc.Reply(c.Request.Context(), req.SessionID, req.Message, req.Context)
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Error("chat failed", slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ChatStream answers over server-sent events: "chunk" events carry deltas,
// "done" carries the final reply, "ping" keeps idle connections open.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	st, err := h.ChatSvc.ReplyStream(ctx, req.SessionID, req.Message, req.Context)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("chat stream failed", slog.Any("err", err))
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, "streaming not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeEvent := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprint(c.Writer, "event: error\ndata: {\"type\":\"error\",\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	writeEvent("session", gin.H{"type": "session", "session_id": st.SessionID})

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	// Done and Errs are only read once every chunk has been written.
	chunks := st.Chunks
	var done <-chan chat.Reply
	var errs <-chan error
	for {
		select {
		case delta, ok := <-chunks:
			if !ok {
				chunks, done, errs = nil, st.Done, st.Errs
				continue
			}
			writeEvent("chunk", gin.H{"type": "chunk", "delta": delta})

		case <-ticker.C:
			writeEvent("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			writeEvent("error", gin.H{"type": "error", "message": err.Error()})
			return

		case reply, ok := <-done:
			if !ok {
				done = nil
				continue
			}
			writeEvent("done", gin.H{
				"type":              "done",
				"session_id":        reply.SessionID,
				"message":           reply.Message,
				"execution_time_ms": reply.ExecutionTimeMS,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) ChatHealth(c *gin.Context) {
	health, err := h.ChatSvc.Health(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) ClearSession(c *gin.Context) {
	err := h.ChatSvc.Clear(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, "Session not found")
	case err != nil:
		common.Fail(c, http.StatusInternalServerError, err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session cleared"})
	}
}
