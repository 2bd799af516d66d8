package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/query"
	"github.com/go-chi/chi/v5"
)

// MsgNoDocument matches the message the error writer uses for domain.ErrNotFound.
const MsgNoDocument = "No document found with that ID"

// Store is the document CRUD surface shared by tours and reviews.
type Store[T any] interface {
	List(ctx context.Context, f query.Features) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, doc *T) (*T, error)
	Update(ctx context.Context, id string, doc *T) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Factory builds the generic list/get/create/update/delete handlers over a Store.
type Factory[T any] struct {
	Store Store[T]
	Errs  *response.Writer

	// Scope adds route-derived filter conditions to List.
	Scope func(r *http.Request) []query.Condition
	// BeforeCreate may fill fields the client does not send.
	BeforeCreate func(r *http.Request, doc *T) error
	AfterCreate  func(r *http.Request, doc *T)
}

func (f *Factory[T]) List(w http.ResponseWriter, r *http.Request) {
	features := query.Parse(r.URL.Query())
	if f.Scope != nil {
		features.Filter = append(features.Filter, f.Scope(r)...)
	}
	f.list(w, r, features)
}

func (f *Factory[T]) list(w http.ResponseWriter, r *http.Request, features query.Features) {
	docs, err := f.Store.List(r.Context(), features)
	if err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	response.List(w, docs, len(docs))
}

func (f *Factory[T]) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := f.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	if doc == nil {
		f.Errs.Error(w, r, apperr.NotFound(MsgNoDocument))
		return
	}
	response.Success(w, http.StatusOK, doc)
}

func (f *Factory[T]) Create(w http.ResponseWriter, r *http.Request) {
	doc := new(T)
	if err := decodeJSON(r, doc); err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	if f.BeforeCreate != nil {
		if err := f.BeforeCreate(r, doc); err != nil {
			f.Errs.Error(w, r, err)
			return
		}
	}
	created, err := f.Store.Create(r.Context(), doc)
	if err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	if f.AfterCreate != nil {
		f.AfterCreate(r, created)
	}
	response.Success(w, http.StatusCreated, created)
}

// Update applies the body as a patch over the stored document.
func (f *Factory[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := f.Store.Get(r.Context(), id)
	if err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	if doc == nil {
		f.Errs.Error(w, r, apperr.NotFound(MsgNoDocument))
		return
	}
	if err := decodeJSON(r, doc); err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	updated, err := f.Store.Update(r.Context(), id, doc)
	if err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, updated)
}

func (f *Factory[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := f.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		f.Errs.Error(w, r, err)
		return
	}
	response.NoContent(w)
}

// decodeJSON reads a JSON body into v. Oversized bodies keep their *http.MaxBytesError.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apperr.Validation("Invalid JSON body")
	}
	return nil
}
