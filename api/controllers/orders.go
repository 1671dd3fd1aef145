package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/api/validators"
	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

type createOrderRequest struct {
	ProductLine    string                    `json:"product_line" validate:"required,oneof=pork egg"`
	BoxPresetID    string                    `json:"box_preset_id" validate:"required,uuid"`
	Variant        string                    `json:"variant" validate:"omitempty,max=120"`
	DeliveryMethod string                    `json:"delivery_method" validate:"required,oneof=pickup home_delivery postal"`
	RushDelivery   bool                      `json:"rush_delivery"`
	WindowID       string                    `json:"delivery_window_id" validate:"required,uuid"`
	CustomerEmail  string                    `json:"customer_email" validate:"required,email"`
	RecipientName  string                    `json:"recipient_name" validate:"omitempty,max=200"`
	RecipientPhone string                    `json:"recipient_phone" validate:"omitempty,max=40"`
	StreetAddress  string                    `json:"street_address" validate:"omitempty,max=300"`
	PostalCode     string                    `json:"postal_code" validate:"omitempty,max=20"`
	City           string                    `json:"city" validate:"omitempty,max=120"`
	Extras         []createOrderExtraRequest `json:"extras" validate:"omitempty,dive"`
	DiscountCode   string                    `json:"discount_code" validate:"omitempty,max=60"`
}

type createOrderExtraRequest struct {
	ExtraProductID string          `json:"extra_product_id" validate:"required,uuid"`
	Quantity       decimal.Decimal `json:"quantity" validate:"required"`
}

// CreateOrder is the storefront reservation endpoint.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func (req createOrderRequest) toInput() (internalorders.CreateOrderInput, error) {
	presetID, err := uuid.Parse(req.BoxPresetID)
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid box preset id")
	}
	windowID, err := uuid.Parse(req.WindowID)
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery window id")
	}

	extras := make([]internalorders.CreateExtraInput, 0, len(req.Extras))
	for _, extra := range req.Extras {
		productID, err := uuid.Parse(extra.ExtraProductID)
		if err != nil {
			return internalorders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid extra product id")
		}
		extras = append(extras, internalorders.CreateExtraInput{
			ExtraProductID: productID,
			Quantity:       extra.Quantity,
		})
	}

	return internalorders.CreateOrderInput{
		ProductLine:    enums.ProductLine(req.ProductLine),
		BoxPresetID:    presetID,
		Variant:        req.Variant,
		DeliveryMethod: enums.DeliveryMethod(req.DeliveryMethod),
		RushDelivery:   req.RushDelivery,
		WindowID:       &windowID,
		CustomerEmail:  req.CustomerEmail,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		StreetAddress:  req.StreetAddress,
		PostalCode:     req.PostalCode,
		City:           req.City,
		Extras:         extras,
		DiscountCode:   req.DiscountCode,
	}, nil
}

// GetOrderByNumber is the customer-facing order lookup.
func GetOrderByNumber(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		view, err := svc.GetByOrderNumber(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
