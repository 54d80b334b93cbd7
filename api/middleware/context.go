package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// Principal returns the parsed caller identity. ok is false when the request
// did not pass through Auth or carried a malformed subject.
func Principal(ctx context.Context) (uuid.UUID, enums.UserRole, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", false
	}
	role := enums.UserRole(RoleFromContext(ctx))
	if !role.IsValid() {
		return uuid.Nil, "", false
	}
	return id, role, true
}

// WithPrincipal injects the caller identity into the context.
func WithPrincipal(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID.String())
	return context.WithValue(ctx, ctxRole, string(role))
}

// RequirePrincipal is Principal for handlers, failing with UNAUTHORIZED.
func RequirePrincipal(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	id, role, ok := Principal(ctx)
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, role, nil
}
