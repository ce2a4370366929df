package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/stepangreenberg/order-processor/internal/domain"
)

// validate is a single shared validator instance — struct-tag based, the
// same shape as the Pydantic-model boundary the original service used to
// reject bad requests before they ever reach a use case.
var validate = validator.New()

// createOrderRequest is the validated wire shape of POST /orders.
type createOrderRequest struct {
	OrderID    string             `json:"order_id" validate:"required"`
	CustomerID string             `json:"customer_id" validate:"required"`
	Items      []itemLineRequest  `json:"items" validate:"required,min=1,dive"`
}

type itemLineRequest struct {
	SKU      string  `json:"sku" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Price    float64 `json:"price" validate:"required,gt=0"`
}

func (req createOrderRequest) toDomainItems() []domain.ItemLine {
	items := make([]domain.ItemLine, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.ItemLine{SKU: item.SKU, Quantity: item.Quantity, Price: item.Price}
	}
	return items
}

// orderResponse is the wire shape returned by the order endpoints.
type orderResponse struct {
	OrderID     string  `json:"order_id"`
	CustomerID  string  `json:"customer_id"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
	Version     int     `json:"version"`
	FailReason  *string `json:"fail_reason,omitempty"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:     o.OrderID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		Version:     o.Version,
		FailReason:  o.FailReason,
	}
}

// dlqEntryResponse is the wire shape returned by GET /internal/dlq.
type dlqEntryResponse struct {
	ID                int64  `json:"id"`
	OriginalEventType string `json:"original_event_type"`
	RetryCount        int    `json:"retry_count"`
	FailureReason     string `json:"failure_reason"`
	MovedToDLQAt      string `json:"moved_to_dlq_at"`
}

// errorResponse is the wire shape of every non-2xx HTTP response. Detail is
// a string for a single-cause error or a list for multi-field validation
// failures; ErrorType is a short machine-readable category a caller can
// switch on without parsing Detail's prose.
type errorResponse struct {
	Detail    any    `json:"detail"`
	ErrorType string `json:"error_type"`
}

func newErrorResponse(detail any, errorType string) errorResponse {
	return errorResponse{Detail: detail, ErrorType: errorType}
}
