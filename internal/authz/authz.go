// Package authz answers capability questions about a request's subject.
package authz

import "strings"

// Capability names an action a subject may attempt.
type Capability string

const (
	RequestAccessToken    Capability = "request_access_token"
	CreateAccessToken     Capability = "create_access_token"
	GeneratePermanentURLs Capability = "generate_permanent_notice_token_urls"
)

// RoleGuest is the role of unauthenticated callers.
const RoleGuest = "GUEST"

// Subject is the principal behind a request. Anonymous callers have
// UserID 0 and the GUEST role.
type Subject struct {
	UserID uint64
	Email  string
	Role   string
}

// Authenticated reports whether the subject came from a verified session.
func (s Subject) Authenticated() bool { return s.UserID != 0 }

// Checker decides whether a subject holds a capability.
type Checker interface {
	Check(c Capability, s Subject) bool
}

// Policy maps upper-cased role names to the capabilities they hold.
type Policy map[string]map[Capability]bool

// DefaultPolicy lets anyone request a temporary token and reserves
// permanent token urls for staff roles.
func DefaultPolicy() Policy {
	public := map[Capability]bool{RequestAccessToken: true, CreateAccessToken: true}
	staff := map[Capability]bool{RequestAccessToken: true, CreateAccessToken: true, GeneratePermanentURLs: true}
	return Policy{
		RoleGuest:     public,
		"RESEARCHER":  public,
		"ADMIN":       staff,
		"SUPER_ADMIN": staff,
	}
}

// Check is false for roles the policy does not know.
func (p Policy) Check(c Capability, s Subject) bool {
	role := strings.ToUpper(strings.TrimSpace(s.Role))
	if role == "" {
		role = RoleGuest
	}
	return p[role][c]
}
