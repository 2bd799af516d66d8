package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/diagnosis/natours/internal/apperr"
	"github.com/diagnosis/natours/internal/domain"
	"github.com/diagnosis/natours/internal/http/handlers"
	mw "github.com/diagnosis/natours/internal/http/middleware"
	"github.com/diagnosis/natours/internal/http/response"
	pkgmw "github.com/diagnosis/natours/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Deps struct {
	Auth    *handlers.AuthHandler
	Users   *handlers.UserHandler
	Tours   *handlers.TourHandler   // nil without a document store
	Reviews *handlers.ReviewHandler // nil without a document store

	Authn mw.Authenticator
	Errs  *response.Writer

	RateLimiter    *mw.RateLimiter        // optional
	Idempotency    pkgmw.IdempotencyStore // optional
	HealthChecks   map[string]pkgmw.HealthCheck
	MaxBodyBytes   int64
	AllowedOrigins []string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.ServiceName("natours"))
	r.Use(pkgmw.Logging)
	r.Use(pkgmw.Recover)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(pkgmw.Health(d.HealthChecks))
	r.Use(pkgmw.BodyLimit(d.MaxBodyBytes))

	protect := mw.Protect(d.Authn, d.Errs)
	restrictTo := func(roles ...domain.Role) func(http.Handler) http.Handler {
		return mw.RestrictTo(d.Errs, roles...)
	}

	r.Route("/api", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware())
		}

		r.Route("/v1/users", func(r chi.Router) {
			r.Post("/signup", d.Auth.Signup)
			r.Post("/login", d.Auth.Login)
			r.Get("/logout", d.Auth.Logout)
			r.Post("/forgotPassword", d.Auth.ForgotPassword)
			r.Post("/forgetPassword", d.Auth.ForgotPassword)
			r.Patch("/resetPassword/{token}", d.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Patch("/updateMyPassword", d.Auth.UpdatePassword)
				r.Get("/me", d.Users.Me)
				r.Patch("/updateMe", d.Users.UpdateMe)
				r.Delete("/deleteMe", d.Users.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(restrictTo(domain.RoleAdmin))
					r.Get("/", d.Users.List)
					r.Post("/", d.Users.Create)
					r.Get("/{id}", d.Users.Get)
					r.Patch("/{id}", d.Users.Update)
					r.Delete("/{id}", d.Users.Delete)
				})
			})
		})

		if d.Tours != nil {
			r.Route("/v1/tours", func(r chi.Router) {
				r.Get("/top-5-cheap", d.Tours.TopCheap)
				r.Get("/tour-stats", d.Tours.Stats)
				r.Get("/{id}", d.Tours.Get)
				r.With(protect).Get("/", d.Tours.List)
				r.With(protect, restrictTo(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
					Get("/monthly-plan/{year}", d.Tours.MonthlyPlan)

				r.Group(func(r chi.Router) {
					r.Use(protect, restrictTo(domain.RoleAdmin, domain.RoleLeadGuide))
					create := http.Handler(http.HandlerFunc(d.Tours.Create))
					if d.Idempotency != nil {
						create = pkgmw.IdempotencyMiddleware(d.Idempotency, 24*time.Hour)(create)
					}
					r.Method(http.MethodPost, "/", create)
					r.Patch("/{id}", d.Tours.Update)
					r.Delete("/{id}", d.Tours.Delete)
				})

				if d.Reviews != nil {
					r.Route(fmt.Sprintf("/{%s}/reviews", handlers.TourIDParam), reviewRoutes(d, protect, restrictTo))
				}
			})
		}

		if d.Reviews != nil {
			r.Route("/v1/reviews", reviewRoutes(d, protect, restrictTo))
		}
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		d.Errs.Error(w, req, apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", req.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		d.Errs.Error(w, req, apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", req.URL.Path)))
	})

	return r
}

func reviewRoutes(d Deps, protect func(http.Handler) http.Handler, restrictTo func(...domain.Role) func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(protect)
		r.Get("/", d.Reviews.List)
		r.Get("/{id}", d.Reviews.Get)
		r.With(restrictTo(domain.RoleUser)).Post("/", d.Reviews.Create)
		r.With(restrictTo(domain.RoleUser, domain.RoleAdmin)).Patch("/{id}", d.Reviews.Update)
		r.With(restrictTo(domain.RoleUser, domain.RoleAdmin)).Delete("/{id}", d.Reviews.Delete)
	}
}
