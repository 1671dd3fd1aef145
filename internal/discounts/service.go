package discounts

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/internal/pricing"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/types"
)

// Service validates discount codes against a deposit basis and freezes the
// applied amount into a snapshot. Codes themselves are catalog data and
// read-only here.
type Service interface {
	Validate(ctx context.Context, code string, basisCents int) (*types.DiscountSnapshot, error)
}

type service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) Service {
	return &service{db: db, now: time.Now}
}

func (s *service) Validate(ctx context.Context, code string, basisCents int) (*types.DiscountSnapshot, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}

	var row models.DiscountCode
	if err := s.db.WithContext(ctx).First(&row, "code = ?", trimmed).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found").
				WithDetails(map[string]any{"code": trimmed})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}

	if !row.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is no longer active").
			WithDetails(map[string]any{"code": trimmed})
	}
	if row.ExpiresAt != nil && row.ExpiresAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code has expired").
			WithDetails(map[string]any{"code": trimmed})
	}
	if basisCents < row.MinBasisCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order deposit is below the code's minimum").
			WithDetails(map[string]any{"code": trimmed, "min_basis_cents": row.MinBasisCents})
	}

	snapshot := &types.DiscountSnapshot{
		Kind:       row.Kind,
		Code:       row.Code,
		PercentOff: row.PercentOff,
	}
	if row.AmountCents != nil {
		snapshot.AmountCents = *row.AmountCents
	}
	// Freeze the effective amount now; later catalog edits must not change
	// what this order was promised.
	snapshot.AmountCents = pricing.DiscountAmountCents(snapshot, basisCents)

	return snapshot, nil
}
