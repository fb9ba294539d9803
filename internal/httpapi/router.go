package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/methodslab/studychat/internal/common"
	"github.com/methodslab/studychat/internal/config"
	"github.com/methodslab/studychat/internal/httpapi/handlers"
	"github.com/methodslab/studychat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Session(cfg.JWTSecret))

	r.GET("/ping", h.Ping)

	// identity
	r.POST("/login", h.Login)
	r.GET("/me", h.Me)

	// persona pages
	r.GET("/parts", h.ListParts)
	r.GET("/parts/:part/history", h.GetHistory)
	r.POST("/parts/:part/messages", h.SendMessage)
	r.POST("/parts/:part/messages/stream", h.SendMessageStream)

	// admin surface (code minting, exports)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AdminRequired(cfg.AdminKeyHash))
	adminGroup.POST("/codes", h.MintCodes)
	adminGroup.GET("/codes/unused", h.UnusedCodes)
	adminGroup.POST("/exports", h.TriggerExport)

	return r
}
