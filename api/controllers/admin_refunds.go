package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/api/validators"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/square"
)

type refundLedgerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
}

type providerRefunder interface {
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

type providerRefundRequest struct {
	Actor       string `json:"actor" validate:"required,max=120"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
	AmountCents int    `json:"amount_cents" validate:"omitempty,min=1"`
}

type providerRefundResponse struct {
	RefundID  string `json:"refund_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// AdminProviderRefund asks the payment provider to return the captured
// deposit. The ledger row and order status follow when the provider's
// refund webhook lands; this endpoint never writes the ledger itself.
func AdminProviderRefund(repo refundLedgerReader, provider providerRefunder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req providerRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := repo.FindByID(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payments, err := repo.FindPaymentsByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deposit := refundableDeposit(payments)
		if deposit == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeIllegalTransition, "no captured provider deposit to refund"))
			return
		}

		amount := req.AmountCents
		if amount <= 0 {
			amount = deposit.AmountCents
		}
		if amount > deposit.AmountCents {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds captured deposit").
					WithDetails(map[string]any{"deposit_cents": deposit.AmountCents}))
			return
		}

		refund, err := provider.RefundPayment(r.Context(), square.RefundCreateParams{
			PaymentID:   *deposit.ProviderPaymentID,
			AmountCents: int64(amount),
			Currency:    "NOK",
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, providerRefundResponse{
			RefundID:  refund.GetID(),
			PaymentID: *deposit.ProviderPaymentID,
			Status:    derefString(refund.GetStatus()),
		})
	}
}

// refundableDeposit picks the most recent completed deposit charge that the
// provider knows about. Manually recorded deposits have no provider id and
// cannot be refunded through the provider.
func refundableDeposit(payments []models.Payment) *models.Payment {
	for i := len(payments) - 1; i >= 0; i-- {
		p := payments[i]
		if p.Type != enums.PaymentTypeDeposit {
			continue
		}
		if p.Status != enums.PaymentStatusCompleted {
			continue
		}
		if p.ProviderPaymentID == nil || *p.ProviderPaymentID == "" {
			continue
		}
		return &p
	}
	return nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
