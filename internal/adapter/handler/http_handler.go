package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

type HTTPHandler struct {
	l           logrus.FieldLogger
	auth        *auth.Service
	movements   *service.MovementService
	queries     *service.QueryService
	refs        *service.ReferenceService
	metrics     http.Handler
	corsOrigins []string
}

type HTTPDeps struct {
	Auth        *auth.Service
	Movements   *service.MovementService
	Queries     *service.QueryService
	References  *service.ReferenceService
	Metrics     http.Handler
	CORSOrigins []string
}

func NewHTTPHandler(l logrus.FieldLogger, deps HTTPDeps) *HTTPHandler {
	return &HTTPHandler{
		l:           l,
		auth:        deps.Auth,
		movements:   deps.Movements,
		queries:     deps.Queries,
		refs:        deps.References,
		metrics:     deps.Metrics,
		corsOrigins: deps.CORSOrigins,
	}
}

// Router wires up the HTTP API.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Retry-After", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/auth/register", h.register)

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)

			pr.Get("/bases", h.listBases)
			pr.Post("/bases", h.createBase)
			pr.Get("/assets", h.listAssets)
			pr.Post("/assets", h.createAsset)
			pr.Get("/assets/base/{baseId}", h.baseBalances)
			pr.Get("/users", h.listUsers)
			pr.Post("/users", h.createUser)

			pr.Get("/purchases", h.listMovements(domain.KindPurchase))
			pr.Post("/purchases", h.recordPurchase)
			pr.Get("/transfers", h.listMovements(domain.KindTransfer))
			pr.Post("/transfers", h.recordTransfer)
			pr.Get("/assignments/assign", h.listMovements(domain.KindAssignment))
			pr.Post("/assignments/assign", h.recordAssignment)
			pr.Get("/assignments/expend", h.listMovements(domain.KindExpenditure))
			pr.Post("/assignments/expend", h.recordExpenditure)

			pr.Get("/dashboard", h.dashboard)
			pr.Get("/dashboard/admin", h.adminDashboard)
			pr.Get("/logistics-dashboard", h.logisticsDashboard)
			pr.Get("/stock", h.stock)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		h.l.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"elapsed_ms": time.Since(started).Milliseconds(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request served.")
	})
}

func (h *HTTPHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := h.auth.Tokens().Parse(strings.TrimSpace(header[len("bearer "):]))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPrincipal, p)))
	})
}

func principalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(ctxPrincipal).(domain.Principal)
	return p
}

// fail maps a service error onto a status code. Forbidden responses never echo details.
func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := httpStatus(err)
	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		h.l.WithError(err).WithField("path", r.URL.Path).Error("Request failed.")
	}
	respondError(w, status, message)
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflicting update, retry with the same id"
	}
	return http.StatusInternalServerError, "internal error"
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
