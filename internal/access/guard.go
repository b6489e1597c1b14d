package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
)

const defaultTimeout = 3 * time.Second

// GuardParams groups the guard's collaborators.
type GuardParams struct {
	Sessions SessionProvider
	Profiles ProfileRepository
	Timeout  time.Duration
	Metrics  *metrics.AccessMetrics
	Logger   *logger.Logger
}

// Guard evaluates role-restricted access. It is safe for concurrent use.
type Guard struct {
	sessions SessionProvider
	profiles ProfileRepository
	timeout  time.Duration
	metrics  *metrics.AccessMetrics
	logg     *logger.Logger
}

// NewGuard builds a guard with the required dependencies.
func NewGuard(params GuardParams) (*Guard, error) {
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session provider is required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile repository is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Guard{
		sessions: params.Sessions,
		profiles: params.Profiles,
		timeout:  timeout,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Authorize runs a check to completion. Cancellation of ctx resolves to Deny.
func (g *Guard) Authorize(ctx context.Context, token string, allowed ...enums.Role) Outcome {
	return g.Start(ctx, token, allowed...).Wait(ctx)
}

// Start begins an asynchronous check. The returned Check reports Pending until
// the session and profile lookups resolve, the timeout elapses, or it is canceled.
func (g *Guard) Start(ctx context.Context, token string, allowed ...enums.Role) *Check {
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	check := &Check{done: make(chan struct{}), cancel: cancel}

	roles := append([]enums.Role(nil), allowed...)
	go g.supervise(checkCtx, cancel, check, token, roles)
	return check
}

func (g *Guard) supervise(ctx context.Context, cancel context.CancelFunc, check *Check, token string, allowed []enums.Role) {
	defer cancel()

	results := make(chan Outcome, 1)
	go func() {
		results <- g.evaluate(ctx, token, allowed)
	}()

	select {
	case outcome := <-results:
		check.resolve(outcome)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			check.resolve(deny(ErrCheckTimeout))
		} else {
			check.resolve(deny(ErrCheckCanceled))
		}
	}

	g.record(ctx, check.Outcome())
}

func (g *Guard) evaluate(ctx context.Context, token string, allowed []enums.Role) Outcome {
	session, err := g.lookupSession(ctx, token)
	if err != nil {
		return deny(fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}
	if session == nil || strings.TrimSpace(session.SubjectID) == "" {
		return deny(ErrSessionUnavailable)
	}

	role, err := g.lookupRole(ctx, session.SubjectID)
	if err != nil {
		out := deny(fmt.Errorf("%w: %v", ErrProfileLookupFailed, err))
		out.SubjectID = session.SubjectID
		return out
	}
	if !role.IsValid() {
		out := deny(fmt.Errorf("%w: unknown role %q", ErrProfileLookupFailed, role))
		out.SubjectID = session.SubjectID
		return out
	}

	if !roleAllowed(role, allowed) {
		return Outcome{Decision: DecisionDeny, SubjectID: session.SubjectID, Role: role, Reason: ErrRoleNotPermitted}
	}
	return Outcome{Decision: DecisionAllow, SubjectID: session.SubjectID, Role: role}
}

func (g *Guard) lookupSession(ctx context.Context, token string) (session *Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session, err = nil, fmt.Errorf("session provider panic: %v", r)
		}
	}()
	return g.sessions.GetSession(ctx, token)
}

func (g *Guard) lookupRole(ctx context.Context, subjectID string) (role enums.Role, err error) {
	defer func() {
		if r := recover(); r != nil {
			role, err = "", fmt.Errorf("profile repository panic: %v", r)
		}
	}()
	return g.profiles.GetRole(ctx, subjectID)
}

func (g *Guard) record(ctx context.Context, outcome Outcome) {
	label := reasonLabel(outcome.Reason)
	g.metrics.IncDecision(outcome.Decision.String(), label)

	if outcome.Decision != DecisionDeny {
		return
	}
	logCtx := g.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"subject_id": outcome.SubjectID,
		"reason":     label,
	})
	switch {
	case errors.Is(outcome.Reason, ErrRoleNotPermitted), errors.Is(outcome.Reason, ErrCheckCanceled):
		g.logg.Debug(logCtx, "access denied")
	default:
		g.logg.WarnErr(logCtx, "access denied", outcome.Reason)
	}
}

func roleAllowed(role enums.Role, allowed []enums.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}

// Check is an in-flight guard evaluation.
type Check struct {
	mu       sync.Mutex
	done     chan struct{}
	cancel   context.CancelFunc
	outcome  Outcome
	resolved bool
}

// Decision returns Pending until the check resolves.
func (c *Check) Decision() Decision {
	return c.Outcome().Decision
}

// Outcome returns the current outcome; Pending while unresolved.
func (c *Check) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.resolved {
		return Outcome{Decision: DecisionPending}
	}
	return c.outcome
}

// Done is closed once the check resolves.
func (c *Check) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the check resolves. If ctx ends first the check is
// canceled and resolves to Deny.
func (c *Check) Wait(ctx context.Context) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		c.Cancel()
	}
	return c.Outcome()
}

// Cancel discards any late result. An unresolved check resolves to Deny; a
// resolved check keeps its outcome.
func (c *Check) Cancel() {
	c.resolve(deny(ErrCheckCanceled))
	c.cancel()
}

func (c *Check) resolve(outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return
	}
	c.outcome = outcome
	c.resolved = true
	close(c.done)
}
