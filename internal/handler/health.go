package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns a health-check endpoint for load balancers.  MySQL must
// answer; Redis is reported but optional since every Redis consumer
// degrades to pass-through.  rdb may be nil.
func Health(db Pinger, rdb *redis.Client) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()

        resp := echo.Map{"status": "ok", "database": "ok", "redis": "disabled"}
        status := http.StatusOK
        if err := db.PingContext(ctx); err != nil {
            resp["status"], resp["database"] = "unavailable", err.Error()
            status = http.StatusServiceUnavailable
        }
        if rdb != nil {
            resp["redis"] = "ok"
            if err := rdb.Ping(ctx).Err(); err != nil {
                resp["redis"] = err.Error()
            }
        }
        return c.JSON(status, resp)
    }
}
