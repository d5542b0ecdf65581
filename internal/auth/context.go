package auth

import (
	"context"

	"contractdesk/internal/rbac"
)

type ctxKey string

const (
	userKey ctxKey = "userClaims"
)

type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role"`
	JWTID   string `json:"jti"`
}

func (c Claims) IsAdmin() bool { return c.Role == rbac.RoleAdmin }

func (c Claims) Can(permission string) bool { return rbac.Can(c.Role, permission) }

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}
