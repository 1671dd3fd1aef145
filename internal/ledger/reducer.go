package ledger

import (
	"sort"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// DerivePaymentState folds an order's payment rows into the authoritative
// payment state. The ledger is append-only; state is never read from a
// stored column, it is recomputed from the rows every time, so the cached
// order status can only ever be reconciled FROM this output.
//
// Deposit side: rows are ordered by creation time; the deposit is held iff a
// completed row exists with no refund after it. A refund recorded after a
// completed deposit supersedes it, while a completed row recorded after the
// refund wins again. Failed rows never displace a held deposit: a declined
// retry after a successful charge does not mean the money left. Pending rows
// and statuses this version does not know are ignored.
//
// Remainder side: completed amounts are summed (minus refunds) and compared
// against the order's current remainder owed. The owed figure is the live
// snapshot, so an upsell after a full remainder payment correctly drops the
// state back to remainder-due.
func DerivePaymentState(order *models.Order, payments []models.Payment) enums.PaymentState {
	sorted := make([]models.Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var depositStatus, remainderStatus enums.PaymentStatus
	remainderPaid := 0
	for _, p := range sorted {
		if !decisive(p.Status) {
			continue
		}
		switch p.Type {
		case enums.PaymentTypeDeposit:
			switch p.Status {
			case enums.PaymentStatusFailed:
				if depositStatus != enums.PaymentStatusCompleted {
					depositStatus = enums.PaymentStatusFailed
				}
			default:
				depositStatus = p.Status
			}
		case enums.PaymentTypeRemainder:
			remainderStatus = p.Status
			switch p.Status {
			case enums.PaymentStatusCompleted:
				remainderPaid += p.AmountCents
			case enums.PaymentStatusRefunded:
				remainderPaid -= p.AmountCents
			}
		}
	}
	if remainderPaid < 0 {
		remainderPaid = 0
	}

	switch depositStatus {
	case enums.PaymentStatusRefunded:
		return enums.PaymentStateRefunded
	case enums.PaymentStatusCompleted:
		if remainderPaid >= order.RemainderCents {
			return enums.PaymentStateFullyPaid
		}
		if remainderStatus == enums.PaymentStatusFailed {
			return enums.PaymentStateFailed
		}
		return enums.PaymentStateRemainderDue
	case enums.PaymentStatusFailed:
		return enums.PaymentStateFailed
	default:
		return enums.PaymentStateDepositPending
	}
}

func decisive(status enums.PaymentStatus) bool {
	switch status {
	case enums.PaymentStatusCompleted, enums.PaymentStatusFailed, enums.PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// DepositSettled reports whether the ledger currently holds a completed
// deposit, independent of how remainder attempts have gone. Only a refund
// recorded after the completed charge releases it; failed retry rows do not.
// The derived failed state can mean either a failed deposit or a failed
// remainder try on a held deposit; transition checks that only care about
// the deposit use this instead.
func DepositSettled(payments []models.Payment) bool {
	sorted := make([]models.Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	settled := false
	for _, p := range sorted {
		if p.Type != enums.PaymentTypeDeposit {
			continue
		}
		switch p.Status {
		case enums.PaymentStatusCompleted:
			settled = true
		case enums.PaymentStatusRefunded:
			settled = false
		}
	}
	return settled
}

// DepositPaid reports whether the derived state implies a settled deposit.
func DepositPaid(state enums.PaymentState) bool {
	return state == enums.PaymentStateRemainderDue || state == enums.PaymentStateFullyPaid
}

// Settled reports whether no further customer payment is expected.
func Settled(state enums.PaymentState) bool {
	return state == enums.PaymentStateFullyPaid || state == enums.PaymentStateRefunded
}
