package handlers

import (
	"net/http"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	mw "github.com/diagnosis/natours/internal/http/middleware"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/query"
	"github.com/diagnosis/natours/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type UserHandler struct {
	Users *service.UserService
	Errs  *response.Writer
}

func NewUserHandler(users *service.UserService, errs *response.Writer) *UserHandler {
	return &UserHandler{Users: users, Errs: errs}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := mw.CurrentUser(r)
	if u == nil {
		h.Errs.Error(w, r, apperr.Authentication(service.MsgNotLoggedIn))
		return
	}
	got, err := h.Users.Get(r.Context(), u.ID)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, userData{User: got})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdateMeRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, err := h.Users.UpdateMe(r.Context(), mw.CurrentUser(r).ID, &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, userData{User: u})
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.DeleteMe(r.Context(), mw.CurrentUser(r)); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.NoContent(w)
}

// List pages through users with the page and limit parameters.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	f := query.Parse(r.URL.Query())
	start := min(f.Skip(), len(users))
	end := min(start+f.Limit, len(users))
	page := users[start:end]
	response.List(w, page, len(page))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, userData{User: u})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var in domain.UpdateUserRequest
	if err := decodeJSON(r, &in); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	u, err := h.Users.Update(r.Context(), id, &in)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, userData{User: u})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.Users.Delete(r.Context(), id); err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.NoContent(w)
}

// Create exists so POST /users points callers at signup.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusInternalServerError, response.Envelope{
		Status:  "error",
		Message: "This route is not defined! Please use /signup instead",
	})
}

func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Errs.Error(w, r, &domain.InvalidIDError{Value: raw})
		return uuid.Nil, false
	}
	return id, true
}
