package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/token-url-service/internal/authz"
	"github.com/iliyamo/token-url-service/internal/handler"
	"github.com/iliyamo/token-url-service/internal/middleware"
)

// RegisterRoutes registers routes that need no session.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterTokenURLs mounts the token url endpoints under /v1.
//
// Requesting a temporary token is open to guests, so the session is
// optional there; a sent but invalid bearer token is still rejected.
// Permanent tokens need a session whose role holds
// generate_permanent_notice_token_urls.  Disabling notifications is
// authorized by the token secret alone and is reachable with GET so the
// link in a mail footer works.
func RegisterTokenURLs(e *echo.Echo, h *handler.TokenURLHandler, policy authz.Checker, jwtSecret string, limiter echo.MiddlewareFunc) {
	notices := e.Group("/v1/notices/:id")

	guest := notices.Group("/token_urls", middleware.OptionalJWT(jwtSecret))
	guest.GET("/new", h.NewForm, middleware.RequireCapability(policy, authz.RequestAccessToken))
	guest.POST("", h.RequestToken, limiter)

	staff := notices.Group("/token_urls/permanent",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireCapability(policy, authz.GeneratePermanentURLs),
	)
	staff.POST("", h.IssuePermanent)

	e.GET("/v1/token_urls/:id/disable_documents_notification", h.DisableNotifications)
	e.POST("/v1/token_urls/:id/disable_documents_notification", h.DisableNotifications)
}
