package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/service"
	"github.com/diagnosis/natours/pkg/logger"
)

type ctxKey string

const ctxUser ctxKey = "user"

// CookieName is the session cookie set on login.
const CookieName = "jwt"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// BearerToken reads the token from "Authorization: Bearer <t>", then from the jwt cookie.
func BearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

// Protect admits only requests carrying a valid token for a live user.
func Protect(authn Authenticator, errs *response.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := authn.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				errs.Error(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), u)
			ctx = context.WithValue(ctx, logger.UserIDKey, u.ID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RestrictTo must run after Protect.
func RestrictTo(errs *response.Writer, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := service.Authorize(CurrentUser(r), roles...); err != nil {
				errs.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

func CurrentUser(r *http.Request) *domain.User {
	u, _ := r.Context().Value(ctxUser).(*domain.User)
	return u
}
