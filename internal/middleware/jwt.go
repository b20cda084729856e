package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/token-url-service/internal/authz"
)

// subjectKey is the echo context key holding the authz.Subject.
const subjectKey = "subject"

// JWTAuth returns an Echo middleware that requires a valid HS256 Bearer
// token and stores the caller as an authz.Subject.  Sessions are issued by
// the wider application; this service only verifies them.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return jwtMiddleware(secret, false)
}

// OptionalJWT behaves like JWTAuth when an Authorization header is sent
// and otherwise lets the request through as a guest.  A header carrying a
// bad token is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return jwtMiddleware(secret, true)
}

func jwtMiddleware(secret string, optional bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" && optional {
                c.Set(subjectKey, authz.Subject{Role: authz.RoleGuest})
                return next(c)
            }
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Reject any signing method other than HMAC.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub, ok := subjectID(claims["sub"])
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
            }
            role, _ := claims["role"].(string)
            email, _ := claims["email"].(string)
            c.Set(subjectKey, authz.Subject{UserID: sub, Email: email, Role: role})
            return next(c)
        }
    }
}

// subjectID accepts the numeric or string forms a "sub" claim may take.
func subjectID(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t > 0 {
            return uint64(t), true
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
            return n, true
        }
    }
    return 0, false
}

// CurrentSubject returns the subject stored by JWTAuth or OptionalJWT, or
// a guest when neither ran.
func CurrentSubject(c echo.Context) authz.Subject {
    if s, ok := c.Get(subjectKey).(authz.Subject); ok {
        return s
    }
    return authz.Subject{Role: authz.RoleGuest}
}
