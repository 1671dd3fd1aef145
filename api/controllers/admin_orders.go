package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/api/validators"
	"github.com/gaardshagen/farmbox-backend/internal/bulk"
	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

// AdminListOrders returns the filtered back-office order list.
func AdminListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := internalorders.ListFilters{
			Query: strings.TrimSpace(r.URL.Query().Get("q")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.OrderStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
						WithDetails(map[string]any{"field": "status"}))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("product_line")); raw != "" {
			line := enums.ProductLine(raw)
			if !line.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown product line").
						WithDetails(map[string]any{"field": "product_line"}))
				return
			}
			filters.ProductLine = &line
		}

		windowID, err := validators.ParseQueryUUID(r, "window_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.WindowID = windowID

		if filters.DateFrom, err = validators.ParseQueryDate(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.DateTo, err = validators.ParseQueryDate(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// AdminGetOrder returns one order with its derived view state.
func AdminGetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type transitionRequest struct {
	Action string `json:"action" validate:"required"`
	Actor  string `json:"actor" validate:"required,max=120"`
	Reason string `json:"reason" validate:"omitempty,max=500"`

	Override         bool `json:"override"`
	ReleaseInventory bool `json:"release_inventory"`

	AmountCents       int    `json:"amount_cents" validate:"omitempty,min=0"`
	ProviderPaymentID string `json:"provider_payment_id" validate:"omitempty,max=120"`
	WindowID          string `json:"window_id" validate:"omitempty,uuid"`
	DeliveryMethod    string `json:"delivery_method" validate:"omitempty,oneof=pickup home_delivery postal"`
	RushDelivery      *bool  `json:"rush_delivery"`

	RecipientName  *string `json:"recipient_name"`
	RecipientPhone *string `json:"recipient_phone"`
	StreetAddress  *string `json:"street_address"`
	PostalCode     *string `json:"postal_code"`
	City           *string `json:"city"`

	ExtraProductID string          `json:"extra_product_id" validate:"omitempty,uuid"`
	Quantity       decimal.Decimal `json:"quantity"`

	DiscountCode string `json:"discount_code" validate:"omitempty,max=60"`
	TargetStatus string `json:"target_status" validate:"omitempty"`
}

func (req transitionRequest) toData() (internalorders.TransitionData, error) {
	data := internalorders.TransitionData{
		AmountCents:       req.AmountCents,
		ProviderPaymentID: req.ProviderPaymentID,
		Quantity:          req.Quantity,
		DiscountCode:      req.DiscountCode,
		TargetStatus:      enums.OrderStatus(req.TargetStatus),
		RushDelivery:      req.RushDelivery,
		RecipientName:     req.RecipientName,
		RecipientPhone:    req.RecipientPhone,
		StreetAddress:     req.StreetAddress,
		PostalCode:        req.PostalCode,
		City:              req.City,
	}
	if req.WindowID != "" {
		windowID, err := uuid.Parse(req.WindowID)
		if err != nil {
			return data, pkgerrors.New(pkgerrors.CodeValidation, "invalid window id")
		}
		data.WindowID = &windowID
	}
	if req.DeliveryMethod != "" {
		method := enums.DeliveryMethod(req.DeliveryMethod)
		data.DeliveryMethod = &method
	}
	if req.ExtraProductID != "" {
		productID, err := uuid.Parse(req.ExtraProductID)
		if err != nil {
			return data, pkgerrors.New(pkgerrors.CodeValidation, "invalid extra product id")
		}
		data.ExtraProductID = productID
	}
	return data, nil
}

// AdminTransitionOrder applies one lifecycle action to one order.
func AdminTransitionOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		data, err := req.toData()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID:          orderID,
			Action:           enums.OrderAction(req.Action),
			Data:             data,
			Actor:            req.Actor,
			Reason:           req.Reason,
			Override:         req.Override,
			ReleaseInventory: req.ReleaseInventory,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type bulkRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,dive,uuid"`
	transitionRequest
}

// AdminBulkTransition applies one action to many orders, collecting
// per-order failures instead of aborting.
func AdminBulkTransition(runner bulk.Runner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
		for _, raw := range req.OrderIDs {
			orderID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid order id").
						WithDetails(map[string]any{"order_id": raw}))
				return
			}
			orderIDs = append(orderIDs, orderID)
		}

		data, err := req.toData()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := runner.Run(r.Context(), bulk.Input{
			OrderIDs:         orderIDs,
			Action:           enums.OrderAction(req.Action),
			Data:             data,
			Actor:            req.Actor,
			Reason:           req.Reason,
			Override:         req.Override,
			ReleaseInventory: req.ReleaseInventory,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
