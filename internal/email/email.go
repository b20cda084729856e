// Package email canonicalizes addresses before they are used as lookup keys.
package email

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformed is returned when an address has no '@' or its domain has
// fewer than two labels.
var ErrMalformed = errors.New("malformed email")

// subAddress matches a "+tag" run up to and including the following '@'.
var subAddress = regexp.MustCompile(`\+[^@]*@`)

// Normalize strips sub-addressing tags, so "user+promo@example.com" becomes
// "user@example.com". No syntactic validation is performed.
func Normalize(addr string) string {
	return subAddress.ReplaceAllString(addr, "@")
}

// Domain returns the registrable part of the address: the last two
// dot-separated labels after the '@', lower-cased.
func Domain(addr string) (string, error) {
	_, host, ok := strings.Cut(addr, "@")
	if !ok || strings.Contains(host, "@") {
		return "", ErrMalformed
	}
	labels := strings.Split(strings.ToLower(strings.TrimSpace(host)), ".")
	if len(labels) < 2 {
		return "", ErrMalformed
	}
	sld, tld := labels[len(labels)-2], labels[len(labels)-1]
	if sld == "" || tld == "" {
		return "", ErrMalformed
	}
	return sld + "." + tld, nil
}

// Redact masks the local part for logging: "john.doe@example.com" becomes
// "jo***@example.com".
func Redact(addr string) string {
	local, host, ok := strings.Cut(addr, "@")
	if !ok {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + host
	}
	return "***@" + host
}
