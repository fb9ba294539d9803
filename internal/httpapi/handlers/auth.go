package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/methodslab/studychat/internal/auth"
	"github.com/methodslab/studychat/internal/common"
	"github.com/methodslab/studychat/internal/httpapi/middleware"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

type loginReq struct {
	Code string `json:"code" binding:"required"`
}

// Login redeems a login code. An unknown or already-used code is a normal
// negative outcome, not a server fault.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	userID, ok, err := h.Codes.Redeem(c.Request.Context(), req.Code)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "login failed")
		return
	}
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40001, "login code is invalid")
		return
	}

	token, err := auth.SignJWT(userID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to sign token")
		return
	}
	c.SetCookie(middleware.IdentityCookie, token, 0, "/", "", false, true)

	common.OK(c, gin.H{"user_id": userID})
}

func (h *Handler) Me(c *gin.Context) {
	sess := middleware.FromContext(c)
	common.OK(c, gin.H{
		"session_token": sess.Token,
		"user_id":       sess.UserID,
		"authenticated": sess.Authenticated(),
	})
}
