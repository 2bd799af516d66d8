package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubAuthenticator struct {
	users map[string]*domain.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperr.Authentication("You are not logged in! Please log in to get access.")
	}
	u, ok := s.users[token]
	if !ok {
		return nil, apperr.Authentication("Invalid token. Please log in again!")
	}
	return u, nil
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", BearerToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", BearerToken(req))

	logout := httptest.NewRequest(http.MethodGet, "/", nil)
	logout.AddCookie(&http.Cookie{Name: CookieName, Value: "loggedout"})
	assert.Empty(t, BearerToken(logout))
}

func TestProtectAndRestrictTo(t *testing.T) {
	admin := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin, Active: true}
	guide := &domain.User{ID: uuid.New(), Role: domain.RoleGuide, Active: true}
	authn := stubAuthenticator{users: map[string]*domain.User{"admin": admin, "guide": guide}}
	errs := response.NewWriter(false)

	var got *domain.User
	h := Protect(authn, errs)(RestrictTo(errs, domain.RoleAdmin, domain.RoleLeadGuide)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CurrentUser(r)
			w.WriteHeader(http.StatusNoContent)
		})))

	tests := []struct {
		name   string
		token  string
		status int
		msg    string
	}{
		{"no token", "", http.StatusUnauthorized, "You are not logged in! Please log in to get access."},
		{"bad token", "nope", http.StatusUnauthorized, "Invalid token. Please log in again!"},
		{"wrong role", "guide", http.StatusForbidden, "You do not have permission to perform this action"},
		{"allowed", "admin", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/tours/1", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				assert.Contains(t, rec.Body.String(), tt.msg)
			}
		})
	}
	assert.Equal(t, admin, got)
}

func TestRestrictTo_WithoutUser(t *testing.T) {
	h := RestrictTo(response.NewWriter(false), domain.RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
