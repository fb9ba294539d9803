package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/methodslab/studychat/internal/chat"
	"github.com/methodslab/studychat/internal/common"
	"github.com/methodslab/studychat/internal/httpapi/middleware"
)

func (h *Handler) ListParts(c *gin.Context) {
	type partInfo struct {
		Name     string `json:"name"`
		Title    string `json:"title"`
		Blurb    string `json:"blurb"`
		Greeting string `json:"greeting,omitempty"`
	}

	parts := h.Parts.All()
	out := make([]partInfo, 0, len(parts))
	for _, p := range parts {
		out = append(out, partInfo{Name: p.Name, Title: p.Title, Blurb: p.Blurb, Greeting: p.Greeting})
	}
	common.OK(c, gin.H{"parts": out})
}

func (h *Handler) GetHistory(c *gin.Context) {
	sess := middleware.FromContext(c)
	part := c.Param("part")

	history, err := h.Engine.History(c.Request.Context(), sess, part)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownPart) {
			common.Fail(c, http.StatusNotFound, 40401, "part not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load history")
		return
	}

	common.OK(c, gin.H{"part": part, "history": history})
}

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	sess := middleware.FromContext(c)
	part := c.Param("part")

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, err := h.Engine.Send(c.Request.Context(), sess, part, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownPart) {
			common.Fail(c, http.StatusNotFound, 40401, "part not found")
			return
		}
		common.Fail(c, http.StatusBadGateway, 50201, "assistant is unavailable, please try again")
		return
	}

	common.OK(c, gin.H{"part": part, "reply": reply})
}

func streamErrMessage(err error) string {
	if errors.Is(err, chat.ErrUnknownPart) {
		return "part not found"
	}
	return err.Error()
}

func (h *Handler) SendMessageStream(c *gin.Context) {
	sess := middleware.FromContext(c)
	part := c.Param("part")

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	chunks, done, errs := h.Engine.SendStream(ctx, sess, part, req.Message)

	// heartbeat ticker keeps connections alive
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			writeJSON("error", gin.H{
				"type":    "error",
				"message": streamErrMessage(err),
			})
			return

		case <-done:
			// done closes together with the other channels, so flush any
			// buffered chunks and check for a buffered error before calling
			// the turn finished.
			if chunks != nil {
				for ch := range chunks {
					writeJSON("chunk", gin.H{
						"type":  "chunk",
						"delta": ch,
					})
				}
			}
			select {
			case err, ok := <-errs:
				if ok && err != nil {
					writeJSON("error", gin.H{
						"type":    "error",
						"message": streamErrMessage(err),
					})
					return
				}
			default:
			}
			writeJSON("done", gin.H{
				"type": "done",
				"part": part,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}
