package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/methodslab/studychat/internal/auth"
	"github.com/methodslab/studychat/internal/common"
	"github.com/methodslab/studychat/internal/session"
)

const (
	SessionKey = "session_ctx"

	// SessionCookie carries the session token; it has no max-age so the
	// browser drops it when the session ends.
	SessionCookie = "sc_session"
	// IdentityCookie carries the signed user identity set at login.
	IdentityCookie = "sc_identity"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id, _ = common.NewULID()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered", "err", r, "path", c.Request.URL.Path)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Session builds the per-request session context: it mints the session token
// on first contact and resolves the identity cookie, falling back to the
// anonymous sentinel. Downstream code reads the context via FromContext,
// never ambient state.
func Session(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			token = session.NewToken()
			c.SetCookie(SessionCookie, token, 0, "/", "", false, true)
		}

		userID := session.AnonymousUser
		if raw, err := c.Cookie(IdentityCookie); err == nil && raw != "" {
			if uid, err := auth.ParseJWT(raw, jwtSecret); err == nil {
				userID = uid
			}
		}

		c.Set(SessionKey, session.Context{Token: token, UserID: userID})
		c.Next()
	}
}

func FromContext(c *gin.Context) session.Context {
	v, ok := c.Get(SessionKey)
	if !ok {
		return session.Context{UserID: session.AnonymousUser}
	}
	sc, _ := v.(session.Context)
	return sc
}

// AdminRequired guards the admin surface with a bcrypt-checked shared key.
func AdminRequired(adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKeyHash == "" {
			common.Fail(c, http.StatusForbidden, 40300, "admin interface disabled")
			c.Abort()
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key == "" || bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)) != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid admin key")
			c.Abort()
			return
		}
		c.Next()
	}
}
