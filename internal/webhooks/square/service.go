package squarewebhook

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/internal/ledger"
	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderTransitioner interface {
	ApplyTransition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionResult, error)
}

type ServiceParams struct {
	OrdersRepo        orders.Repository
	Orders            orderTransitioner
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service folds Square payment and refund events into the payment ledger.
// It only appends and updates ledger rows; order status follows via the
// normal status-sync transition, never directly from the webhook.
type Service struct {
	repo     orders.Repository
	orders   orderTransitioner
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:     params.OrdersRepo,
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

type WebhookEvent struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Data    WebhookData `json:"data"`
}

type WebhookData struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Object WebhookObject `json:"object"`
}

type WebhookObject struct {
	Payment *PaymentObject `json:"payment"`
	Refund  *RefundObject  `json:"refund"`
}

type PaymentObject struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	ReferenceID string       `json:"reference_id"`
	AmountMoney *MoneyObject `json:"amount_money"`
	Note        string       `json:"note"`
}

type RefundObject struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PaymentID   string       `json:"payment_id"`
	AmountMoney *MoneyObject `json:"amount_money"`
	Reason      string       `json:"reason"`
}

type MoneyObject struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// HandleEvent folds one Square event into the ledger and re-syncs the order
// status. Unknown event types are acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		if event.Data.Object.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
		}
		return s.syncPayment(ctx, event.Data.Object.Payment)
	case "refund.created", "refund.updated":
		if event.Data.Object.Refund == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
		}
		return s.syncRefund(ctx, event.Data.Object.Refund)
	default:
		return nil
	}
}

func (s *Service) syncPayment(ctx context.Context, payment *PaymentObject) error {
	if payment.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id missing")
	}

	status, ok := paymentStatusFor(payment.Status)
	if !ok {
		// PENDING and APPROVED resolve with a later payment.updated.
		return nil
	}

	var target *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stored, err := repo.FindPaymentByProviderID(ctx, payment.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by provider id")
		}
		if stored != nil {
			target, err = repo.FindByID(ctx, stored.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if stored.Status == status {
				return nil
			}
			// Rows are append-only once terminal; only a pending row may
			// still move. A stray update against a settled charge is
			// acknowledged without touching the ledger.
			if stored.Status != enums.PaymentStatusPending {
				return nil
			}
			updates := map[string]any{"status": status}
			if status == enums.PaymentStatusCompleted {
				updates["paid_at"] = time.Now()
			}
			if status == enums.PaymentStatusFailed {
				updates["failure_reason"] = failureReasonFor(payment.Status)
			}
			return repo.UpdatePayment(ctx, stored.ID, updates)
		}

		if payment.ReferenceID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment has no order reference")
		}
		order, err := repo.FindByOrderNumber(ctx, payment.ReferenceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by number")
		}
		target = order

		existing, err := repo.FindPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
		}

		// First completed charge settles the deposit; everything after
		// that pays down the remainder.
		paymentType := enums.PaymentTypeRemainder
		if !ledger.DepositSettled(existing) {
			paymentType = enums.PaymentTypeDeposit
		}

		amount := int(payment.AmountMoney.amount())
		if amount <= 0 {
			if paymentType == enums.PaymentTypeDeposit {
				amount = order.DepositCents
			} else {
				amount = order.RemainderCents
			}
		}

		providerID := payment.ID
		row := &models.Payment{
			OrderID:           order.ID,
			Type:              paymentType,
			Status:            status,
			AmountCents:       amount,
			ProviderPaymentID: &providerID,
		}
		if status == enums.PaymentStatusCompleted {
			now := time.Now()
			row.PaidAt = &now
		}
		if status == enums.PaymentStatusFailed {
			reason := failureReasonFor(payment.Status)
			row.FailureReason = &reason
		}
		return repo.AppendPayment(ctx, row)
	})
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}

	_, err = s.orders.ApplyTransition(ctx, orders.TransitionInput{
		OrderID: target.ID,
		Action:  enums.ActionSyncStatus,
	})
	return err
}

func (s *Service) syncRefund(ctx context.Context, refund *RefundObject) error {
	if refund.PaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund has no payment id")
	}
	if !strings.EqualFold(refund.Status, "COMPLETED") {
		return nil
	}

	var order *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stored, err := repo.FindPaymentByProviderID(ctx, refund.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "refunded payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by provider id")
		}
		order, err = repo.FindByID(ctx, stored.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// A refund is always its own ledger row; the original completed
		// charge stays untouched for the audit trail. The refund id keys
		// the row, so created/updated events for the same refund land once.
		if refund.ID != "" {
			if existing, err := repo.FindPaymentByProviderID(ctx, refund.ID); err != nil && err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund by provider id")
			} else if existing != nil {
				return nil
			}
		}

		amount := int(refund.AmountMoney.amount())
		if amount <= 0 || amount > stored.AmountCents {
			amount = stored.AmountCents
		}
		refundID := refund.ID
		return repo.AppendPayment(ctx, &models.Payment{
			OrderID:           order.ID,
			Type:              stored.Type,
			Status:            enums.PaymentStatusRefunded,
			AmountCents:       amount,
			ProviderPaymentID: &refundID,
		})
	})
	if err != nil {
		return err
	}

	_, err = s.orders.ApplyTransition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		Action:  enums.ActionSyncStatus,
	})
	return err
}

func (m *MoneyObject) amount() int64 {
	if m == nil {
		return 0
	}
	return m.Amount
}

func paymentStatusFor(squareStatus string) (enums.PaymentStatus, bool) {
	switch strings.ToUpper(squareStatus) {
	case "COMPLETED":
		return enums.PaymentStatusCompleted, true
	case "FAILED", "CANCELED":
		return enums.PaymentStatusFailed, true
	default:
		return "", false
	}
}

func failureReasonFor(squareStatus string) string {
	if strings.EqualFold(squareStatus, "CANCELED") {
		return "payment canceled"
	}
	return "payment failed"
}
