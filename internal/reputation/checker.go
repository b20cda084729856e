// Package reputation decides whether an email address looks abusive by
// combining a static domain blocklist with a remote reputation service.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/token-url-service/internal/email"
)

// ErrRemote wraps every failure of the remote reputation service.
var ErrRemote = errors.New("reputation service unavailable")

// Client queries a remote reputation service. Frequency is the number of
// abuse reports recorded for the address; zero means clean.
type Client interface {
	Frequency(ctx context.Context, addr string) (int, error)
}

// Checker combines the blocklist and the remote client. The zero value is
// not usable; construct it with NewChecker.
type Checker struct {
	blocked map[string]struct{}
	client  Client
	timeout time.Duration
}

// NewChecker builds a Checker. Blocked domains are compared lower-cased.
// A non-positive timeout falls back to three seconds.
func NewChecker(blocked []string, client Client, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	set := make(map[string]struct{}, len(blocked))
	for _, d := range blocked {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return &Checker{blocked: set, client: client, timeout: timeout}
}

// ParseBlocklist splits a comma separated setting into domains.
func ParseBlocklist(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Blocked reports whether domain is on the blocklist.
func (c *Checker) Blocked(domain string) bool {
	_, ok := c.blocked[strings.ToLower(domain)]
	return ok
}

// Check reports whether addr should be treated as spam. The only error it
// returns is email.ErrMalformed; remote failures resolve to spam.
func (c *Checker) Check(ctx context.Context, addr string) (bool, error) {
	domain, err := email.Domain(addr)
	if err != nil {
		return false, fmt.Errorf("reputation check: %w", err)
	}
	if c.Blocked(domain) {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	freq, err := c.client.Frequency(ctx, addr)
	if err != nil {
		log.Warnj(log.JSON{
			"msg":   "reputation lookup failed, treating address as spam",
			"email": email.Redact(addr),
			"error": err.Error(),
		})
		return true, nil
	}
	return freq != 0, nil
}
