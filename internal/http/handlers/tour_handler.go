package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/query"
	"github.com/diagnosis/natours/pkg/events"
	"github.com/diagnosis/natours/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type TourStore interface {
	Store[domain.Tour]
	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error)
}

type TourHandler struct {
	*Factory[domain.Tour]
	Tours  TourStore
	Events events.Publisher
}

func NewTourHandler(tours TourStore, errs *response.Writer, publisher events.Publisher) *TourHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	h := &TourHandler{Tours: tours, Events: publisher}
	h.Factory = &Factory[domain.Tour]{
		Store:       tours,
		Errs:        errs,
		AfterCreate: h.publishCreated,
	}
	return h
}

// TopCheap lists the five best rated tours, cheapest first among equals.
func (h *TourHandler) TopCheap(w http.ResponseWriter, r *http.Request) {
	values := url.Values{
		"limit":  {"5"},
		"sort":   {"-ratingsAverage,price"},
		"fields": {"name,price,ratingsAverage,summary,difficulty"},
	}
	h.list(w, r, query.Parse(values))
}

func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tours.Stats(r.Context())
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 {
		h.Errs.Error(w, r, apperr.Validation("Invalid year: "+chi.URLParam(r, "year")+"."))
		return
	}
	plan, err := h.Tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		h.Errs.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"plan": plan})
}

func (h *TourHandler) publishCreated(r *http.Request, t *domain.Tour) {
	evt := events.TourCreatedEvent{
		TourID:    t.ID.Hex(),
		Name:      t.Name,
		Slug:      t.Slug,
		CreatedAt: t.CreatedAt,
	}
	if err := h.Events.Publish(r.Context(), events.TourCreated, evt); err != nil {
		logger.WarnContext(r.Context(), "failed to publish event", "subject", events.TourCreated, "error", err)
	}
}
