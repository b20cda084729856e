package middleware // middleware provides shared request processing for handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/token-url-service/internal/authz"
)

// RequireCapability returns a middleware that aborts with 403 Forbidden
// unless the current subject holds capability.  It assumes JWTAuth or
// OptionalJWT ran earlier in the chain.
func RequireCapability(checker authz.Checker, capability authz.Capability) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !checker.Check(capability, CurrentSubject(c)) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
