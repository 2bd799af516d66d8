package handlers

import (
	"net/http"
	"time"

	"github.com/diagnosis/natours/internal/domain"
	mw "github.com/diagnosis/natours/internal/http/middleware"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/service"
	"github.com/go-chi/chi/v5"
)

// CookieOptions controls the jwt cookie handed out on login.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	Auth      *service.AuthService
	Errs      *response.Writer
	Cookie    CookieOptions
	PublicURL string // base for reset links; derived from the request when empty
}

func NewAuthHandler(auth *service.AuthService, errs *response.Writer, cookie CookieOptions, publicURL string) *AuthHandler {
	return &AuthHandler{Auth: auth, Errs: errs, Cookie: cookie, PublicURL: publicURL}
}

type userData struct {
	User *domain.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in domain.SignupRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, token, err := h.Auth.Signup(r.Context(), &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	h.sendToken(w, http.StatusCreated, u, token)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, token, err := h.Auth.Login(r.Context(), &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, u, token)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.CookieName,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
	})
	response.WriteJSON(w, http.StatusOK, response.Envelope{Status: "success"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.ForgotPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	base := h.baseURL(r)
	err := h.Auth.ForgotPassword(r.Context(), &in, func(token string) string {
		return base + "/api/v1/users/resetPassword/" + token
	})
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Message(w, http.StatusOK, "Token sent to email!")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in domain.ResetPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, token, err := h.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, u, token)
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdatePasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, token, err := h.Auth.UpdatePassword(r.Context(), mw.CurrentUser(r), &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, u, token)
}

func (h *AuthHandler) sendToken(w http.ResponseWriter, status int, u *domain.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.Cookie.TTL),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	response.WriteJSON(w, status, response.Envelope{
		Status: "success",
		Token:  token,
		Data:   userData{User: u},
	})
}

func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
