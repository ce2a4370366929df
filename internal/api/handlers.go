// Package api is the Order Service's HTTP edge: request validation via
// go-playground/validator DTOs, dispatch into internal/usecase, and
// rendering via go-chi/render — the idiomatic chi-ecosystem analogue of
// the teacher repo's net/http handlers.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/stepangreenberg/order-processor/internal/cache"
	"github.com/stepangreenberg/order-processor/internal/domain"
	"github.com/stepangreenberg/order-processor/internal/storage"
	"github.com/stepangreenberg/order-processor/internal/usecase"
)

// Handler holds every dependency the HTTP layer needs. Cache is optional —
// a nil Cache simply means every read goes straight to Postgres.
type Handler struct {
	Orders     *usecase.OrderUseCases
	Cache      *cache.Client
	UOWFactory storage.UnitOfWorkFactory // used directly only for the DLQ inspection endpoint
	Log        *slog.Logger
}

// Health — GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// CreateOrder — POST /orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, newErrorResponse("invalid JSON payload", "bad_request"))
		return
	}
	if err := validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, newErrorResponse(validationDetail(err), "validation_error"))
		return
	}

	order, err := h.Orders.CreateOrder(r.Context(), usecase.CreateOrderCommand{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Items:      req.toDomainItems(),
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, newErrorResponse(ve.Error(), "validation_error"))
			return
		}
		h.Log.Error("create order failed", "component", "api", "order_id", req.OrderID, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, newErrorResponse("internal server error", "internal_error"))
		return
	}

	if h.Cache != nil {
		if err := h.Cache.SetOrder(r.Context(), order); err != nil {
			h.Log.Warn("cache write failed", "component", "api", "order_id", order.OrderID, "error", err)
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toOrderResponse(order))
}

// validationDetail turns a validator.ValidationErrors into a list of
// per-field messages, or falls back to the raw error string for anything
// else validate.Struct could return.
func validationDetail(err error) any {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	detail := make([]string, len(ve))
	for i, fe := range ve {
		detail[i] = fe.Field() + ": " + fe.Tag()
	}
	return detail
}

// GetOrder — GET /orders/{id}
//
// Cache HIT returns instantly; a MISS falls through to Postgres via the
// use-case's own repository and back-fills the cache for subsequent reads.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if h.Cache != nil {
		if order, err := h.Cache.GetOrder(r.Context(), orderID); err == nil {
			w.Header().Set("X-Cache", "HIT")
			render.Status(r, http.StatusOK)
			render.JSON(w, r, toOrderResponse(order))
			return
		}
	}

	order, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Log.Error("get order failed", "component", "api", "order_id", orderID, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, newErrorResponse("internal server error", "internal_error"))
		return
	}
	if order == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, newErrorResponse("order not found", "not_found"))
		return
	}

	if h.Cache != nil {
		_ = h.Cache.SetOrder(r.Context(), order) // back-fill; failure is non-fatal
	}

	w.Header().Set("X-Cache", "MISS")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, toOrderResponse(order))
}

// ListDeadLetters — GET /internal/dlq
//
// Operability endpoint (spec supplement): exposes the outbox rows that
// exhausted their retry budget, so an operator can see what never reached
// the broker without a direct database connection.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	uow, err := h.UOWFactory.Begin(r.Context())
	if err != nil {
		h.Log.Error("dlq list failed", "component", "api", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, newErrorResponse("internal server error", "internal_error"))
		return
	}
	defer uow.Close(r.Context())

	entries, err := uow.DLQ().List(r.Context())
	if err != nil {
		h.Log.Error("dlq list failed", "component", "api", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, newErrorResponse("internal server error", "internal_error"))
		return
	}

	out := make([]dlqEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = dlqEntryResponse{
			ID:                e.ID,
			OriginalEventType: e.OriginalEventType,
			RetryCount:        e.RetryCount,
			FailureReason:     e.FailureReason,
			MovedToDLQAt:      e.MovedToDLQAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}
