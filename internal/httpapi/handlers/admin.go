package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/methodslab/studychat/internal/common"
	"github.com/methodslab/studychat/internal/logincode"
	"github.com/methodslab/studychat/internal/store/rabbitmq"
)

type mintCodesReq struct {
	Count  int `json:"count" binding:"required"`
	Length int `json:"length"`
}

// MintCodes generates a batch of login codes, persists them and writes the
// handout CSV.
func (h *Handler) MintCodes(c *gin.Context) {
	var req mintCodesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Count <= 0 || req.Count > 1000 {
		common.Fail(c, http.StatusBadRequest, 10002, "count must be between 1 and 1000")
		return
	}

	minted, err := h.Codes.Mint(c.Request.Context(), req.Count, req.Length)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to mint codes")
		return
	}

	csvPath, err := logincode.ExportCSVFile("exports", minted)
	if err != nil {
		slog.Error("login code csv export failed", "err", err)
		// Codes are persisted; the CSV is a convenience copy.
		csvPath = ""
	}

	codes := make([]string, 0, len(minted))
	for _, m := range minted {
		codes = append(codes, m.Code)
	}
	common.OK(c, gin.H{"codes": codes, "csv": csvPath})
}

func (h *Handler) UnusedCodes(c *gin.Context) {
	n, err := h.Codes.UnusedCount(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to count codes")
		return
	}
	common.OK(c, gin.H{"unused": n})
}

type triggerExportReq struct {
	Parts []string `json:"parts"`
}

// TriggerExport enqueues a transcript export job for the worker.
func (h *Handler) TriggerExport(c *gin.Context) {
	var req triggerExportReq
	_ = c.ShouldBindJSON(&req) // allow empty body, meaning all parts

	for _, p := range req.Parts {
		if _, ok := h.Parts.Get(p); !ok {
			common.Fail(c, http.StatusBadRequest, 10003, "unknown part: "+p)
			return
		}
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "internal error")
		return
	}

	job := rabbitmq.ExportJob{JobID: jobID, Parts: req.Parts}
	if err := h.Rabbit.PublishExport(c.Request.Context(), job); err != nil {
		slog.Error("export enqueue failed", "job_id", jobID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50007, "enqueue failed")
		return
	}

	common.OK(c, gin.H{"job_id": jobID})
}
