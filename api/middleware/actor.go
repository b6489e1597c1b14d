package middleware

import (
	"context"

	"github.com/storefront-labs/storefront/pkg/enums"
)

// actor is what the access guard learned about the caller.
type actor struct {
	subjectID string
	role      enums.Role
}

type actorKey struct{}

func actorFrom(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func withActor(ctx context.Context, a actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, a)
}

// UserIDFromContext returns the authenticated subject, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	return actorFrom(ctx).subjectID
}

func RoleFromContext(ctx context.Context) enums.Role {
	return actorFrom(ctx).role
}

func WithUserID(ctx context.Context, subjectID string) context.Context {
	a := actorFrom(ctx)
	a.subjectID = subjectID
	return withActor(ctx, a)
}

func WithRole(ctx context.Context, role enums.Role) context.Context {
	a := actorFrom(ctx)
	a.role = role
	return withActor(ctx, a)
}
