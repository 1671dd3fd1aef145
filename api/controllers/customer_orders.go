package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/api/validators"
	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

// Customer self-service mutations are keyed by order number, carry no actor,
// and go through the same transition path as the back office, so lock and
// status rules apply uniformly.

type addExtraRequest struct {
	ExtraProductID string          `json:"extra_product_id" validate:"required,uuid"`
	Quantity       decimal.Decimal `json:"quantity" validate:"required"`
}

type adjustExtraRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

type applyDiscountRequest struct {
	Code string `json:"code" validate:"required,max=60"`
}

type updateDeliveryRequest struct {
	DeliveryMethod *string `json:"delivery_method" validate:"omitempty,oneof=pickup home_delivery postal"`
	RushDelivery   *bool   `json:"rush_delivery"`
	RecipientName  *string `json:"recipient_name" validate:"omitempty,max=200"`
	RecipientPhone *string `json:"recipient_phone" validate:"omitempty,max=40"`
	StreetAddress  *string `json:"street_address" validate:"omitempty,max=300"`
	PostalCode     *string `json:"postal_code" validate:"omitempty,max=20"`
	City           *string `json:"city" validate:"omitempty,max=120"`
}

// AddOrderExtra appends an add-on line to an open order.
func AddOrderExtra(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req addExtraRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.PathUUID(req.ExtraProductID, "extra_product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID: view.Order.ID,
			Action:  enums.ActionAddExtra,
			Data: internalorders.TransitionData{
				ExtraProductID: productID,
				Quantity:       req.Quantity,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

// AdjustOrderExtra changes the quantity of an existing add-on line. A zero
// quantity removes the line.
func AdjustOrderExtra(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.PathUUID(chi.URLParam(r, "extraProductId"), "extraProductId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adjustExtraRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID: view.Order.ID,
			Action:  enums.ActionAdjustExtra,
			Data: internalorders.TransitionData{
				ExtraProductID: productID,
				Quantity:       req.Quantity,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

// ApplyOrderDiscount attaches a discount code, replacing any existing one.
func ApplyOrderDiscount(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID: view.Order.ID,
			Action:  enums.ActionApplyDiscount,
			Data:    internalorders.TransitionData{DiscountCode: req.Code},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

// ClearOrderDiscount removes the attached discount and reprices.
func ClearOrderDiscount(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID: view.Order.ID,
			Action:  enums.ActionClearDiscount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

// UpdateOrderDelivery changes delivery method, rush flag, or shipping fields.
func UpdateOrderDelivery(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		data := internalorders.TransitionData{
			RushDelivery:   req.RushDelivery,
			RecipientName:  req.RecipientName,
			RecipientPhone: req.RecipientPhone,
			StreetAddress:  req.StreetAddress,
			PostalCode:     req.PostalCode,
			City:           req.City,
		}
		if req.DeliveryMethod != nil {
			method := enums.DeliveryMethod(*req.DeliveryMethod)
			data.DeliveryMethod = &method
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID: view.Order.ID,
			Action:  enums.ActionUpdateDelivery,
			Data:    data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

// CancelOrder is the customer self-service cancellation. Reserved window
// capacity is always handed back.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID:          view.Order.ID,
			Action:           enums.ActionCancelOrder,
			ReleaseInventory: true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Order)
	}
}

func resolveOrderNumber(r *http.Request, svc internalorders.Service) (*internalorders.OrderView, error) {
	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	return svc.GetByOrderNumber(r.Context(), orderNumber)
}
