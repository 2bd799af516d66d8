package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/pkg/auth"
	"github.com/diagnosis/natours/pkg/logger"
)

// ErrorResponse is the production error body.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DevErrorResponse adds diagnostics for development builds.
type DevErrorResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Error   ErrorInfo `json:"error"`
	Stack   string    `json:"stack,omitempty"`
}

type ErrorInfo struct {
	Kind        apperr.Kind `json:"kind"`
	StatusCode  int         `json:"statusCode"`
	Operational bool        `json:"isOperational"`
	Cause       string      `json:"cause,omitempty"`
}

// Writer renders errors in the shape selected by the environment.
type Writer struct {
	Development bool
}

func NewWriter(development bool) *Writer {
	return &Writer{Development: development}
}

// Error converts err to an *apperr.Error and writes it.
func (wr *Writer) Error(w http.ResponseWriter, r *http.Request, err error) {
	e := Classify(err)

	if !e.Operational {
		logger.ErrorContext(r.Context(), "unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	if wr.Development {
		body := DevErrorResponse{
			Status:  e.Status(),
			Message: e.Message,
			Error: ErrorInfo{
				Kind:        e.Kind,
				StatusCode:  e.StatusCode(),
				Operational: e.Operational,
			},
			Stack: e.Stack(),
		}
		if e.Cause != nil {
			body.Error.Cause = e.Cause.Error()
		}
		WriteJSON(w, e.StatusCode(), body)
		return
	}

	WriteJSON(w, e.StatusCode(), ErrorResponse{Status: e.Status(), Message: e.Message})
}

// Classify maps known failures onto operational errors. Anything unrecognised becomes
// an internal error.
func Classify(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}

	var dup *domain.DuplicateError
	var badID *domain.InvalidIDError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		return apperr.Validation(fmt.Sprintf("Invalid input data. %s", invalid.Message))
	case errors.As(err, &badID):
		return apperr.Validation(badID.Error())
	case errors.As(err, &dup):
		return apperr.Validation(fmt.Sprintf("Duplicate field value: %s. Please use another value!", dup.Value))
	case errors.Is(err, auth.ErrTokenExpired):
		return apperr.Authentication("Your token has expired! Please log in again.")
	case errors.Is(err, auth.ErrTokenInvalid):
		return apperr.Authentication("Invalid token. Please log in again!")
	case errors.Is(err, domain.ErrNotFound):
		return apperr.NotFound("No document found with that ID")
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return apperr.Validation(fmt.Sprintf("Request body too large (limit %d bytes)", maxBytes.Limit))
	}

	return apperr.Internal(err)
}
