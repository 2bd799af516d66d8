package handlers

import (
	"net/http"

	"github.com/diagnosis/natours/internal/domain"
	mw "github.com/diagnosis/natours/internal/http/middleware"
	"github.com/diagnosis/natours/internal/http/response"
	"github.com/diagnosis/natours/internal/query"
	"github.com/diagnosis/natours/pkg/events"
	"github.com/diagnosis/natours/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TourIDParam names the URL parameter of reviews nested under a tour.
const TourIDParam = "tourId"

type ReviewHandler struct {
	*Factory[domain.Review]
	Events events.Publisher
}

func NewReviewHandler(reviews Store[domain.Review], errs *response.Writer, publisher events.Publisher) *ReviewHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	h := &ReviewHandler{Events: publisher}
	h.Factory = &Factory[domain.Review]{
		Store:        reviews,
		Errs:         errs,
		Scope:        tourScope,
		BeforeCreate: setReviewOwner,
		AfterCreate:  h.publishCreated,
	}
	return h
}

func tourScope(r *http.Request) []query.Condition {
	if tourID := chi.URLParam(r, TourIDParam); tourID != "" {
		return []query.Condition{{Field: "tour", Op: query.OpEq, Value: tourID}}
	}
	return nil
}

// setReviewOwner takes the tour from the URL when the body has none, and always
// attributes the review to the current user.
func setReviewOwner(r *http.Request, rv *domain.Review) error {
	if raw := chi.URLParam(r, TourIDParam); raw != "" && rv.Tour.IsZero() {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return &domain.InvalidIDError{Value: raw}
		}
		rv.Tour = oid
	}
	if u := mw.CurrentUser(r); u != nil {
		rv.User = u.ID.String()
	}
	return nil
}

func (h *ReviewHandler) publishCreated(r *http.Request, rv *domain.Review) {
	evt := events.ReviewCreatedEvent{
		ReviewID:  rv.ID.Hex(),
		TourID:    rv.Tour.Hex(),
		UserID:    rv.User,
		Rating:    rv.Rating,
		CreatedAt: rv.CreatedAt,
	}
	if err := h.Events.Publish(r.Context(), events.ReviewCreated, evt); err != nil {
		logger.WarnContext(r.Context(), "failed to publish event", "subject", events.ReviewCreated, "error", err)
	}
}
