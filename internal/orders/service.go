package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/internal/ledger"
	"github.com/gaardshagen/farmbox-backend/internal/pricing"
	"github.com/gaardshagen/farmbox-backend/internal/risk"
	"github.com/gaardshagen/farmbox-backend/pkg/config"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/outbox"
	"github.com/gaardshagen/farmbox-backend/pkg/types"
)

// remainderDueLeadDays is how many days before the delivery window starts
// the remainder falls due.
const remainderDueLeadDays = 7

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CapacityManager is the delivery-window capacity contract the controller
// drives. It only decides when to reserve and release; the counter's own
// concurrency control lives behind this interface.
type CapacityManager interface {
	Reserve(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error
	Window(ctx context.Context, windowID uuid.UUID) (*models.DeliveryWindow, error)
}

// DiscountValidator resolves a code against a deposit basis.
type DiscountValidator interface {
	Validate(ctx context.Context, code string, basisCents int) (*types.DiscountSnapshot, error)
}

// CatalogReader exposes the read-only catalog the storefront orders from.
type CatalogReader interface {
	BoxPreset(ctx context.Context, id uuid.UUID) (*models.BoxPreset, error)
	ExtraProduct(ctx context.Context, id uuid.UUID) (*models.ExtraProduct, error)
}

// Service orchestrates single-order lifecycle transitions. Every transition
// re-derives payment state and lock status from fresh rows inside the
// transaction; caller-supplied state is never trusted.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderView, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderView, error)
	List(ctx context.Context, filters ListFilters) ([]OrderView, error)
	ApplyTransition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	capacity  CapacityManager
	discounts DiscountValidator
	catalog   CatalogReader
	pricing   config.PricingConfig

	now       func() time.Time
	numberGen func() string
}

// NewService builds the order lifecycle service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	capacity CapacityManager,
	discounts DiscountValidator,
	catalog CatalogReader,
	pricingCfg config.PricingConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if capacity == nil {
		return nil, fmt.Errorf("capacity manager required")
	}
	if discounts == nil {
		return nil, fmt.Errorf("discount validator required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		capacity:  capacity,
		discounts: discounts,
		catalog:   catalog,
		pricing:   pricingCfg,
		now:       time.Now,
		numberGen: newOrderNumber,
	}, nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("FB-%s-%s", time.Now().UTC().Format("2006"), suffix)
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if !input.ProductLine.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product line")
	}
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method")
	}
	if input.BoxPresetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "box preset is required")
	}
	if input.WindowID == nil || *input.WindowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery window is required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}

	preset, err := s.catalog.BoxPreset(ctx, input.BoxPresetID)
	if err != nil {
		return nil, err
	}
	if !preset.Active || preset.ProductLine != input.ProductLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "box preset is not available for this product line")
	}

	window, err := s.capacity.Window(ctx, *input.WindowID)
	if err != nil {
		return nil, err
	}
	if window.ProductLine != input.ProductLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery window belongs to another product line")
	}

	extras := make([]models.OrderExtra, 0, len(input.Extras))
	lines := make([]pricing.ExtraLine, 0, len(input.Extras))
	for _, in := range input.Extras {
		product, err := s.catalog.ExtraProduct(ctx, in.ExtraProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "extra product is not available").
				WithDetails(map[string]any{"extra_product_id": in.ExtraProductID.String()})
		}
		line := pricing.ExtraLine{
			ExtraProductID: product.ID,
			Name:           product.Name,
			PricingMode:    product.PricingMode,
			UnitPriceCents: product.UnitPriceCents,
			Quantity:       in.Quantity,
		}
		if err := line.Validate(); err != nil {
			return nil, err
		}
		lines = append(lines, line)
		extras = append(extras, models.OrderExtra{
			ExtraProductID: product.ID,
			Name:           product.Name,
			PricingMode:    product.PricingMode,
			UnitPriceCents: product.UnitPriceCents,
			Quantity:       in.Quantity,
			LineTotalCents: line.LineTotalCents(),
		})
	}

	depositPercent := s.pricing.DepositPercent(string(input.ProductLine))
	var discount *types.DiscountSnapshot
	if code := strings.TrimSpace(input.DiscountCode); code != "" {
		basis := preset.PriceCents * depositPercent / 100
		discount, err = s.discounts.Validate(ctx, code, basis)
		if err != nil {
			return nil, err
		}
	}

	totals, err := pricing.ComputeTotals(pricing.Input{
		BoxPriceCents:    preset.PriceCents,
		DepositPercent:   depositPercent,
		Extras:           lines,
		DeliveryMethod:   input.DeliveryMethod,
		DeliveryFeeCents: s.deliveryFee(input.DeliveryMethod),
		RushDelivery:     input.RushDelivery,
		RushFeeCents:     s.pricing.RushFeeCents,
		Discount:         discount,
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:      s.numberGen(),
		ProductLine:      input.ProductLine,
		BoxPresetID:      preset.ID,
		BoxName:          preset.Name,
		Variant:          optString(input.Variant),
		Status:           enums.OrderStatusDraft,
		BoxPriceCents:    totals.BoxPriceCents,
		DepositCents:     totals.DepositCents,
		RemainderCents:   totals.RemainderCents,
		DeliveryFeeCents: totals.DeliveryFeeCents,
		RushFeeCents:     totals.RushFeeCents,
		TotalCents:       totals.GrandTotalCents,
		Discount:         discount,
		DeliveryMethod:   input.DeliveryMethod,
		RushDelivery:     input.RushDelivery,
		DeliveryWindowID: *input.WindowID,
		RecipientName:    optString(input.RecipientName),
		RecipientPhone:   optString(input.RecipientPhone),
		StreetAddress:    optString(input.StreetAddress),
		PostalCode:       optString(input.PostalCode),
		City:             optString(input.City),
		CustomerEmail:    strings.TrimSpace(input.CustomerEmail),
		Version:          1,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.capacity.Reserve(ctx, tx, order.DeliveryWindowID, 1); err != nil {
			return err
		}
		created, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range extras {
			extras[i].OrderID = created.ID
			if err := repo.UpsertExtra(ctx, &extras[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order extra")
			}
		}
		created.Extras = extras

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Data: OrderStateChangedEvent{
				OrderID:      created.ID,
				OrderNumber:  created.OrderNumber,
				StatusBefore: enums.OrderStatusDraft,
				StatusAfter:  enums.OrderStatusDraft,
				PaymentState: enums.PaymentStateDepositPending,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return s.buildView(order, nil), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	payments, err := s.repo.FindPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return s.buildView(order, payments), nil
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderView, error) {
	order, err := s.repo.FindByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	payments, err := s.repo.FindPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return s.buildView(order, payments), nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]OrderView, error) {
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]OrderView, 0, len(rows))
	for i := range rows {
		payments, err := s.repo.FindPaymentsByOrder(ctx, rows[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}
		views = append(views, *s.buildView(&rows[i], payments))
	}
	return views, nil
}

// ApplyTransition runs one named transition against one order, inside a
// single transaction. Payment state and lock status are re-derived from the
// rows read under that transaction before any validation happens.
func (s *service) ApplyTransition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", input.Action))
	}

	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		payments, err := repo.FindPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}
		state := ledger.DerivePaymentState(order, payments)

		if input.Action.MutatesCustomerSelection() {
			if err := risk.EnsureModifiable(order, input.Override); err != nil {
				return err
			}
		}

		statusBefore := order.Status
		changed, err := s.apply(ctx, tx, repo, order, payments, state, input)
		if err != nil {
			return err
		}

		var noteID *uuid.UUID
		if strings.TrimSpace(input.Actor) != "" {
			note := &models.AdminNote{
				OrderID:  order.ID,
				Action:   input.Action,
				Reason:   optString(input.Reason),
				Override: input.Override,
				Actor:    strings.TrimSpace(input.Actor),
			}
			if _, err := repo.CreateAdminNote(ctx, note); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record admin note")
			}
			noteID = &note.ID
		}

		// Re-derive after the handler so the event and result carry the
		// post-transition truth.
		payments, err = repo.FindPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payments")
		}
		stateAfter := ledger.DerivePaymentState(order, payments)

		if changed && order.Status != statusBefore {
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderStateChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actorRef(input.Actor),
				Data: OrderStateChangedEvent{
					OrderID:      order.ID,
					OrderNumber:  order.OrderNumber,
					Action:       input.Action,
					StatusBefore: statusBefore,
					StatusAfter:  order.Status,
					PaymentState: stateAfter,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		view := s.buildView(order, payments)
		result = &TransitionResult{
			Order:        view,
			AuditNoteID:  noteID,
			StatusBefore: statusBefore,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) apply(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	payments []models.Payment,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	switch input.Action {
	case enums.ActionMarkDepositPaid:
		return s.markDepositPaid(ctx, tx, repo, order, payments, state, input)
	case enums.ActionMarkRemainderPaid:
		return s.markRemainderPaid(ctx, tx, repo, order, payments, state, input)
	case enums.ActionSyncStatus:
		return s.syncStatus(ctx, repo, order, state)
	case enums.ActionCancelOrder:
		return s.cancel(ctx, tx, repo, order, state, input, false)
	case enums.ActionCancelAndRefund:
		return s.cancel(ctx, tx, repo, order, state, input, true)
	case enums.ActionRefundDeposit:
		return s.refundDeposit(ctx, tx, repo, order, payments, input)
	case enums.ActionMoveWindow:
		return s.moveWindow(ctx, tx, repo, order, input)
	case enums.ActionUpdateDelivery:
		return s.updateDelivery(ctx, tx, repo, order, state, input)
	case enums.ActionSetStatus:
		return s.setStatus(ctx, repo, order, input)
	case enums.ActionAddExtra:
		return s.addExtra(ctx, tx, repo, order, state, input)
	case enums.ActionAdjustExtra:
		return s.adjustExtra(ctx, tx, repo, order, state, input)
	case enums.ActionApplyDiscount:
		return s.applyDiscount(ctx, tx, repo, order, payments, state, input)
	case enums.ActionClearDiscount:
		return s.clearDiscount(ctx, tx, repo, order, state)
	case enums.ActionLockOrder:
		return s.lockOrder(ctx, tx, repo, order)
	case enums.ActionMarkDelivered:
		return s.markDelivered(ctx, tx, repo, order)
	case enums.ActionForfeitOrder:
		return s.forfeit(ctx, tx, repo, order, input)
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unhandled action %q", input.Action))
	}
}

func (s *service) markDepositPaid(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	payments []models.Payment,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if ledger.DepositPaid(state) {
		return false, nil
	}

	amount := input.Data.AmountCents
	if amount <= 0 {
		amount = order.DepositCents
	}
	now := s.now()
	payment := &models.Payment{
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       amount,
		ProviderPaymentID: optString(input.Data.ProviderPaymentID),
		PaidAt:            &now,
	}
	if err := repo.AppendPayment(ctx, payment); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append deposit payment")
	}

	updates := map[string]any{}
	if order.Status == enums.OrderStatusDraft {
		updates["status"] = enums.OrderStatusDepositPaid
		order.Status = enums.OrderStatusDepositPaid
	}
	if order.RemainderDueDate == nil {
		if due, err := s.dueDateFor(ctx, order); err == nil && due != nil {
			updates["remainder_due_date"] = *due
			order.RemainderDueDate = due
		}
	}
	if len(updates) > 0 {
		if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
			return false, err
		}
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: PaymentRecordedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			PaymentID:   payment.ID,
			Type:        payment.Type,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
		},
	})
	return true, err
}

func (s *service) markRemainderPaid(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	payments []models.Payment,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if state == enums.PaymentStateFullyPaid {
		return false, nil
	}
	if !ledger.DepositSettled(payments) {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "remainder requires a settled deposit").
			WithDetails(map[string]any{"payment_state": string(state)})
	}

	amount := input.Data.AmountCents
	if amount <= 0 {
		amount = order.RemainderCents
	}
	now := s.now()
	payment := &models.Payment{
		OrderID:           order.ID,
		Type:              enums.PaymentTypeRemainder,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       amount,
		ProviderPaymentID: optString(input.Data.ProviderPaymentID),
		PaidAt:            &now,
	}
	if err := repo.AppendPayment(ctx, payment); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append remainder payment")
	}

	if order.Status == enums.OrderStatusDraft || order.Status == enums.OrderStatusDepositPaid {
		if err := repo.UpdateVersioned(ctx, order, map[string]any{"status": enums.OrderStatusPaid}); err != nil {
			return false, err
		}
		order.Status = enums.OrderStatusPaid
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: PaymentRecordedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			PaymentID:   payment.ID,
			Type:        payment.Type,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
		},
	})
	return true, err
}

// syncStatus reconciles the cached status column from the derived state.
// Only the payment-derived band (draft, deposit_paid, paid) is touched;
// fulfillment statuses outrank the ledger and terminal statuses never move.
func (s *service) syncStatus(ctx context.Context, repo Repository, order *models.Order, state enums.PaymentState) (bool, error) {
	inBand := order.Status == enums.OrderStatusDraft ||
		order.Status == enums.OrderStatusDepositPaid ||
		order.Status == enums.OrderStatusPaid
	if !inBand {
		return false, nil
	}

	var target enums.OrderStatus
	switch state {
	case enums.PaymentStateDepositPending:
		target = enums.OrderStatusDraft
	case enums.PaymentStateRemainderDue:
		target = enums.OrderStatusDepositPaid
	case enums.PaymentStateFullyPaid:
		target = enums.OrderStatusPaid
	case enums.PaymentStateRefunded:
		target = enums.OrderStatusCancelled
	default:
		return false, nil
	}
	if target == order.Status {
		return false, nil
	}

	if err := repo.UpdateVersioned(ctx, order, map[string]any{"status": target}); err != nil {
		return false, err
	}
	order.Status = target
	return true, nil
}

func (s *service) cancel(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	state enums.PaymentState,
	input TransitionInput,
	refundDeposit bool,
) (bool, error) {
	if order.Status == enums.OrderStatusCancelled {
		return false, nil
	}
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}

	if refundDeposit && ledger.DepositPaid(state) {
		if _, err := s.appendDepositRefund(ctx, tx, repo, order, input); err != nil {
			return false, err
		}
	}

	now := s.now()
	updates := map[string]any{
		"status":       enums.OrderStatusCancelled,
		"cancelled_at": now,
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now

	if input.ReleaseInventory {
		if err := s.releaseCapacity(ctx, tx, order, input); err != nil {
			return false, err
		}
	}

	err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: OrderStateChangedEvent{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			Action:       input.Action,
			StatusAfter:  enums.OrderStatusCancelled,
			PaymentState: state,
		},
	})
	return true, err
}

func (s *service) refundDeposit(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	payments []models.Payment,
	input TransitionInput,
) (bool, error) {
	if !ledger.DepositSettled(payments) {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "no settled deposit to refund")
	}
	if _, err := s.appendDepositRefund(ctx, tx, repo, order, input); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) appendDepositRefund(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	input TransitionInput,
) (*models.Payment, error) {
	amount := input.Data.AmountCents
	if amount <= 0 {
		amount = order.DepositCents
	}
	payment := &models.Payment{
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusRefunded,
		AmountCents:       amount,
		ProviderPaymentID: optString(input.Data.ProviderPaymentID),
	}
	if err := repo.AppendPayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append deposit refund")
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: PaymentRecordedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			PaymentID:   payment.ID,
			Type:        payment.Type,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
		},
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) moveWindow(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if input.Data.WindowID == nil || *input.Data.WindowID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "target window is required")
	}
	target := *input.Data.WindowID
	if target == order.DeliveryWindowID {
		return false, nil
	}

	window, err := s.capacity.Window(ctx, target)
	if err != nil {
		return false, err
	}
	if window.ProductLine != order.ProductLine {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "target window belongs to another product line")
	}

	// Reserve the target before releasing the source so a full target
	// window fails the move without losing the original spot.
	if err := s.capacity.Reserve(ctx, tx, target, 1); err != nil {
		return false, err
	}
	if err := s.capacity.Release(ctx, tx, order.DeliveryWindowID, 1); err != nil {
		return false, err
	}

	from := order.DeliveryWindowID
	updates := map[string]any{"delivery_window_id": target}
	if order.RemainderDueDate != nil {
		due := window.StartsOn.AddDate(0, 0, -remainderDueLeadDays)
		updates["remainder_due_date"] = due
		order.RemainderDueDate = &due
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	order.DeliveryWindowID = target

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderWindowMoved,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: WindowMovedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			FromWindow:  &from,
			ToWindow:    target,
		},
	})
	return true, err
}

func (s *service) updateDelivery(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}

	updates := map[string]any{}
	if input.Data.DeliveryMethod != nil {
		method := *input.Data.DeliveryMethod
		if !method.IsValid() {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method")
		}
		order.DeliveryMethod = method
		updates["delivery_method"] = method
	}
	if input.Data.RushDelivery != nil {
		order.RushDelivery = *input.Data.RushDelivery
		updates["rush_delivery"] = *input.Data.RushDelivery
	}
	if order.RushDelivery && !order.DeliveryMethod.SupportsRush() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "rush delivery is only available with home delivery")
	}
	applyStringUpdate(updates, "recipient_name", input.Data.RecipientName, &order.RecipientName)
	applyStringUpdate(updates, "recipient_phone", input.Data.RecipientPhone, &order.RecipientPhone)
	applyStringUpdate(updates, "street_address", input.Data.StreetAddress, &order.StreetAddress)
	applyStringUpdate(updates, "postal_code", input.Data.PostalCode, &order.PostalCode)
	applyStringUpdate(updates, "city", input.Data.City, &order.City)

	if len(updates) == 0 {
		return false, nil
	}

	repriced, err := s.applyMoney(order, state, updates)
	if err != nil {
		return false, err
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	if repriced {
		if err := s.emitRepriced(ctx, tx, order, input.Actor); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) setStatus(ctx context.Context, repo Repository, order *models.Order, input TransitionInput) (bool, error) {
	target := input.Data.TargetStatus
	if !target.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if target == order.Status {
		return false, nil
	}
	if !legalStatusChange(order.Status, target) {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	updates := map[string]any{"status": target}
	if target == enums.OrderStatusCancelled || target == enums.OrderStatusForfeited {
		updates["cancelled_at"] = s.now()
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	order.Status = target
	return true, nil
}

func (s *service) addExtra(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if input.Data.ExtraProductID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "extra product is required")
	}

	product, err := s.catalog.ExtraProduct(ctx, input.Data.ExtraProductID)
	if err != nil {
		return false, err
	}
	if !product.Active {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "extra product is not available")
	}

	quantity := input.Data.Quantity
	var existing *models.OrderExtra
	for i := range order.Extras {
		if order.Extras[i].ExtraProductID == product.ID {
			existing = &order.Extras[i]
			break
		}
	}
	if existing != nil {
		quantity = existing.Quantity.Add(quantity)
	}

	line := pricing.ExtraLine{
		ExtraProductID: product.ID,
		Name:           product.Name,
		PricingMode:    product.PricingMode,
		UnitPriceCents: product.UnitPriceCents,
		Quantity:       quantity,
	}
	if err := line.Validate(); err != nil {
		return false, err
	}

	row := models.OrderExtra{
		OrderID:        order.ID,
		ExtraProductID: product.ID,
		Name:           product.Name,
		PricingMode:    product.PricingMode,
		UnitPriceCents: product.UnitPriceCents,
		Quantity:       quantity,
		LineTotalCents: line.LineTotalCents(),
	}
	if err := repo.UpsertExtra(ctx, &row); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert order extra")
	}
	if existing != nil {
		existing.Quantity = quantity
		existing.LineTotalCents = row.LineTotalCents
	} else {
		order.Extras = append(order.Extras, row)
	}

	return s.repriceAndPersist(ctx, tx, repo, order, state, input.Actor)
}

func (s *service) adjustExtra(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if input.Data.ExtraProductID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "extra product is required")
	}

	var existing *models.OrderExtra
	idx := -1
	for i := range order.Extras {
		if order.Extras[i].ExtraProductID == input.Data.ExtraProductID {
			existing = &order.Extras[i]
			idx = i
			break
		}
	}
	if existing == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "extra is not on this order")
	}

	quantity := input.Data.Quantity
	if quantity.Sign() <= 0 {
		// Adjusting to zero or below drops the line entirely.
		if err := repo.DeleteExtra(ctx, order.ID, existing.ExtraProductID); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove order extra")
		}
		order.Extras = append(order.Extras[:idx], order.Extras[idx+1:]...)
		return s.repriceAndPersist(ctx, tx, repo, order, state, input.Actor)
	}

	line := pricing.ExtraLine{
		ExtraProductID: existing.ExtraProductID,
		Name:           existing.Name,
		PricingMode:    existing.PricingMode,
		UnitPriceCents: existing.UnitPriceCents,
		Quantity:       quantity,
	}
	if err := line.Validate(); err != nil {
		return false, err
	}

	existing.Quantity = quantity
	existing.LineTotalCents = line.LineTotalCents()
	if err := repo.UpsertExtra(ctx, existing); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order extra")
	}

	return s.repriceAndPersist(ctx, tx, repo, order, state, input.Actor)
}

func (s *service) applyDiscount(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	payments []models.Payment,
	state enums.PaymentState,
	input TransitionInput,
) (bool, error) {
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	if ledger.DepositSettled(payments) {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "discounts cannot change a settled deposit")
	}

	basis := order.BoxPriceCents * s.pricing.DepositPercent(string(order.ProductLine)) / 100
	snapshot, err := s.discounts.Validate(ctx, input.Data.DiscountCode, basis)
	if err != nil {
		return false, err
	}

	// The setter replaces: applying a rebate over a referral clears the
	// referral first, never stacks.
	order.Discount = snapshot
	updates := map[string]any{"discount": snapshot}
	repriced, err := s.applyMoney(order, state, updates)
	if err != nil {
		return false, err
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	if repriced {
		if err := s.emitRepriced(ctx, tx, order, input.Actor); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) clearDiscount(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, state enums.PaymentState) (bool, error) {
	if order.Discount == nil {
		return false, nil
	}
	order.Discount = nil
	updates := map[string]any{"discount": nil}
	repriced, err := s.applyMoney(order, state, updates)
	if err != nil {
		return false, err
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	if repriced {
		if err := s.emitRepriced(ctx, tx, order, ""); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) lockOrder(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (bool, error) {
	if order.IsLocked() {
		return false, nil
	}
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	now := s.now()
	if err := repo.UpdateVersioned(ctx, order, map[string]any{"locked_at": now}); err != nil {
		return false, err
	}
	order.LockedAt = &now

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderLocked,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: OrderStateChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Action:      enums.ActionLockOrder,
			StatusAfter: order.Status,
		},
	})
	return true, err
}

func (s *service) markDelivered(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (bool, error) {
	if order.DeliveredAt != nil {
		return false, nil
	}
	if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusForfeited {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}
	now := s.now()
	updates := map[string]any{
		"delivered_at": now,
		"status":       enums.OrderStatusCompleted,
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	order.DeliveredAt = &now
	order.Status = enums.OrderStatusCompleted

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: OrderStateChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Action:      enums.ActionMarkDelivered,
			StatusAfter: order.Status,
		},
	})
	return true, err
}

func (s *service) forfeit(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input TransitionInput) (bool, error) {
	if order.Status == enums.OrderStatusForfeited {
		return false, nil
	}
	if order.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is in a terminal state")
	}

	now := s.now()
	updates := map[string]any{
		"status":       enums.OrderStatusForfeited,
		"cancelled_at": now,
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	order.Status = enums.OrderStatusForfeited
	order.CancelledAt = &now

	if input.ReleaseInventory {
		if err := s.releaseCapacity(ctx, tx, order, input); err != nil {
			return false, err
		}
	}

	err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderForfeited,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: OrderStateChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Action:      input.Action,
			StatusAfter: enums.OrderStatusForfeited,
		},
	})
	return true, err
}

func (s *service) releaseCapacity(ctx context.Context, tx *gorm.DB, order *models.Order, input TransitionInput) error {
	if order.DeliveryWindowID == uuid.Nil {
		return nil
	}
	if err := s.capacity.Release(ctx, tx, order.DeliveryWindowID, 1); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCapacityReleased,
		AggregateType: enums.AggregateDeliveryWindow,
		AggregateID:   order.DeliveryWindowID,
		Version:       1,
		Actor:         actorRef(input.Actor),
		Data: CapacityReleasedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			WindowID:    order.DeliveryWindowID,
			Quantity:    1,
		},
	})
}

// repriceAndPersist recomputes the money snapshot after an extras change and
// writes it with the version guard.
func (s *service) repriceAndPersist(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.Order,
	state enums.PaymentState,
	actor string,
) (bool, error) {
	updates := map[string]any{}
	repriced, err := s.applyMoney(order, state, updates)
	if err != nil {
		return false, err
	}
	if err := repo.UpdateVersioned(ctx, order, updates); err != nil {
		return false, err
	}
	if repriced {
		if err := s.emitRepriced(ctx, tx, order, actor); err != nil {
			return false, err
		}
	}
	return true, nil
}

// applyMoney recomputes totals from the order's current selections and folds
// the changed money columns into updates. A paid deposit never moves; any
// difference lands on the remainder so deposit+remainder keeps equalling the
// grand total.
func (s *service) applyMoney(order *models.Order, state enums.PaymentState, updates map[string]any) (bool, error) {
	lines := make([]pricing.ExtraLine, 0, len(order.Extras))
	for _, extra := range order.Extras {
		lines = append(lines, pricing.ExtraLine{
			ExtraProductID: extra.ExtraProductID,
			Name:           extra.Name,
			PricingMode:    extra.PricingMode,
			UnitPriceCents: extra.UnitPriceCents,
			Quantity:       extra.Quantity,
		})
	}

	totals, err := pricing.ComputeTotals(pricing.Input{
		BoxPriceCents:    order.BoxPriceCents,
		DepositPercent:   s.pricing.DepositPercent(string(order.ProductLine)),
		Extras:           lines,
		DeliveryMethod:   order.DeliveryMethod,
		DeliveryFeeCents: s.deliveryFee(order.DeliveryMethod),
		RushDelivery:     order.RushDelivery,
		RushFeeCents:     s.pricing.RushFeeCents,
		Discount:         order.Discount,
	})
	if err != nil {
		return false, err
	}

	if ledger.DepositPaid(state) && totals.DepositCents != order.DepositCents {
		totals.RemainderCents = totals.GrandTotalCents - order.DepositCents
		totals.DepositCents = order.DepositCents
		totals.GrandTotalCents = totals.DepositCents + totals.RemainderCents
	}

	changed := totals.DepositCents != order.DepositCents ||
		totals.RemainderCents != order.RemainderCents ||
		totals.DeliveryFeeCents != order.DeliveryFeeCents ||
		totals.RushFeeCents != order.RushFeeCents ||
		totals.GrandTotalCents != order.TotalCents
	if !changed {
		return false, nil
	}

	order.DepositCents = totals.DepositCents
	order.RemainderCents = totals.RemainderCents
	order.DeliveryFeeCents = totals.DeliveryFeeCents
	order.RushFeeCents = totals.RushFeeCents
	order.TotalCents = totals.GrandTotalCents

	updates["deposit_cents"] = totals.DepositCents
	updates["remainder_cents"] = totals.RemainderCents
	updates["delivery_fee_cents"] = totals.DeliveryFeeCents
	updates["rush_fee_cents"] = totals.RushFeeCents
	updates["total_cents"] = totals.GrandTotalCents
	return true, nil
}

func (s *service) emitRepriced(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRepriced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: OrderRepricedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			DepositCents:   order.DepositCents,
			RemainderCents: order.RemainderCents,
			TotalCents:     order.TotalCents,
		},
	})
}

func (s *service) dueDateFor(ctx context.Context, order *models.Order) (*time.Time, error) {
	if order.DeliveryWindowID == uuid.Nil {
		return nil, nil
	}
	window, err := s.capacity.Window(ctx, order.DeliveryWindowID)
	if err != nil {
		return nil, err
	}
	due := window.StartsOn.AddDate(0, 0, -remainderDueLeadDays)
	return &due, nil
}

func (s *service) deliveryFee(method enums.DeliveryMethod) int {
	switch method {
	case enums.DeliveryMethodHomeDelivery:
		return s.pricing.HomeDeliveryCents
	case enums.DeliveryMethodPostal:
		return s.pricing.PostalCents
	default:
		return 0
	}
}

func (s *service) buildView(order *models.Order, payments []models.Payment) *OrderView {
	state := ledger.DerivePaymentState(order, payments)
	view := &OrderView{
		Order:              order,
		PaymentState:       state,
		AtRisk:             risk.IsAtRisk(order, state, s.now()),
		ShippingIncomplete: risk.ShippingIncomplete(order),
	}
	if order.RemainderDueDate != nil && !order.Status.IsTerminal() {
		days := risk.DaysUntilDue(*order.RemainderDueDate, s.now())
		view.DaysUntilDue = &days
	}
	return view
}

func legalStatusChange(from, to enums.OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled || to == enums.OrderStatusForfeited {
		return true
	}
	next := map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusDraft:          {enums.OrderStatusDepositPaid},
		enums.OrderStatusDepositPaid:    {enums.OrderStatusPaid},
		enums.OrderStatusPaid:           {enums.OrderStatusReadyForPickup, enums.OrderStatusCompleted},
		enums.OrderStatusReadyForPickup: {enums.OrderStatusCompleted},
	}
	for _, candidate := range next[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func actorRef(actor string) *outbox.ActorRef {
	trimmed := strings.TrimSpace(actor)
	if trimmed == "" {
		return nil
	}
	return &outbox.ActorRef{Name: trimmed, Role: "admin"}
}

func applyStringUpdate(updates map[string]any, column string, value *string, field **string) {
	if value == nil {
		return
	}
	trimmed := strings.TrimSpace(*value)
	*field = &trimmed
	updates[column] = trimmed
}

func optString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
