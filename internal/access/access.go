// Package access decides whether an authenticated subject may enter a
// role-restricted route. Every failure path resolves to Deny.
package access

import (
	"context"
	"errors"

	"github.com/storefront-labs/storefront/pkg/enums"
)

// Decision is the tri-state result of a guard check.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "pending"
	}
}

var (
	ErrSessionUnavailable  = errors.New("session unavailable")
	ErrProfileLookupFailed = errors.New("profile lookup failed")
	ErrRoleNotPermitted    = errors.New("role not permitted")
	ErrCheckTimeout        = errors.New("access check timed out")
	ErrCheckCanceled       = errors.New("access check canceled")
)

// Session is the authenticated identity proven by a bearer token.
type Session struct {
	SubjectID string
	AccessID  string
}

// SessionProvider resolves the current session. A nil session with a nil
// error means no session exists.
type SessionProvider interface {
	GetSession(ctx context.Context, token string) (*Session, error)
}

// ProfileRepository resolves the authoritative role for a subject.
type ProfileRepository interface {
	GetRole(ctx context.Context, subjectID string) (enums.Role, error)
}

// Outcome is a resolved (or pending) guard decision. Reason is nil on Allow.
type Outcome struct {
	Decision  Decision
	SubjectID string
	Role      enums.Role
	Reason    error
}

// Allowed reports whether the outcome grants access.
func (o Outcome) Allowed() bool {
	return o.Decision == DecisionAllow
}

func deny(reason error) Outcome {
	return Outcome{Decision: DecisionDeny, Reason: reason}
}

func reasonLabel(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, ErrCheckTimeout):
		return "timeout"
	case errors.Is(err, ErrCheckCanceled):
		return "canceled"
	case errors.Is(err, ErrSessionUnavailable):
		return "session_unavailable"
	case errors.Is(err, ErrProfileLookupFailed):
		return "profile_lookup_failed"
	case errors.Is(err, ErrRoleNotPermitted):
		return "role_not_permitted"
	default:
		return "unknown"
	}
}
