package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	sq "github.com/square/square-go-sdk"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/api/validators"
	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/square"
)

type paymentProvider interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type createPaymentRequest struct {
	SourceID string `json:"source_id" validate:"required,max=200"`
	Phase    string `json:"phase" validate:"required,oneof=deposit remainder"`
}

type paymentStatusResponse struct {
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	AmountCents int    `json:"amount_cents"`
	Phase       string `json:"phase,omitempty"`
}

// CreateOrderPayment charges the deposit or the remainder through the
// payment provider. The charge is recorded in the ledger when the provider's
// payment webhook lands; this endpoint never writes the ledger itself.
func CreateOrderPayment(svc internalorders.Service, provider paymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := chargeableAmount(view, enums.PaymentType(req.Phase))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order := view.Order
		payment, err := provider.CreatePayment(r.Context(), square.PaymentCreateParams{
			AmountCents: int64(amount),
			Currency:    "NOK",
			SourceID:    req.SourceID,
			ReferenceID: order.OrderNumber,
			Note:        fmt.Sprintf("farmbox %s %s", req.Phase, order.OrderNumber),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, paymentStatusResponse{
			PaymentID:   derefString(payment.GetID()),
			Status:      derefString(payment.GetStatus()),
			AmountCents: amount,
			Phase:       req.Phase,
		})
	}
}

// GetOrderPayment polls the provider for one charge's status after checkout.
func GetOrderPayment(svc internalorders.Service, provider paymentProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := resolveOrderNumber(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		payment, err := provider.GetPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// A charge is only visible through the order it references.
		if derefString(payment.GetReferenceID()) != view.Order.OrderNumber {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order"))
			return
		}

		responses.WriteSuccess(w, paymentStatusResponse{
			PaymentID:   derefString(payment.GetID()),
			Status:      derefString(payment.GetStatus()),
			AmountCents: moneyCents(payment.GetAmountMoney()),
		})
	}
}

// chargeableAmount maps the requested phase onto the order's money snapshot
// and rejects charges the ledger has already settled.
func chargeableAmount(view *internalorders.OrderView, phase enums.PaymentType) (int, error) {
	switch phase {
	case enums.PaymentTypeDeposit:
		switch view.PaymentState {
		case enums.PaymentStateDepositPending, enums.PaymentStateFailed:
			return view.Order.DepositCents, nil
		default:
			return 0, pkgerrors.New(pkgerrors.CodeConflict, "deposit already settled")
		}
	case enums.PaymentTypeRemainder:
		if view.PaymentState != enums.PaymentStateRemainderDue {
			return 0, pkgerrors.New(pkgerrors.CodeConflict, "remainder is not due")
		}
		return view.Order.RemainderCents, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment phase")
	}
}

func moneyCents(money *sq.Money) int {
	if money == nil {
		return 0
	}
	amount := money.GetAmount()
	if amount == nil {
		return 0
	}
	return int(*amount)
}
