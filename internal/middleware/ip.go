package middleware

import (
    "fmt"
    "net"

    "github.com/labstack/echo/v4"
)

// NewIPExtractor decides what c.RealIP() returns.  Without trusted proxies
// the socket peer is the client and forwarding headers are ignored, so a
// caller cannot pick its own rate limit bucket.  With proxies, the
// right-most X-Forwarded-For hop outside the given CIDR ranges is used.
func NewIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
    if len(trustedProxies) == 0 {
        return echo.ExtractIPDirect(), nil
    }
    opts := []echo.TrustOption{
        echo.TrustLoopback(false),
        echo.TrustLinkLocal(false),
        echo.TrustPrivateNet(false),
    }
    for _, cidr := range trustedProxies {
        _, ipNet, err := net.ParseCIDR(cidr)
        if err != nil {
            return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
        }
        opts = append(opts, echo.TrustIPRange(ipNet))
    }
    return echo.ExtractIPFromXFFHeader(opts...), nil
}
