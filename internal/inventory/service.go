package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
)

// Service guards delivery-window capacity. Reservations and releases run
// inside the caller's transaction so capacity moves atomically with the
// order row they belong to.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error
	Window(ctx context.Context, windowID uuid.UUID) (*models.DeliveryWindow, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

// Reserve takes capacity from an open window. The WHERE clause carries the
// capacity guard, so a concurrent reservation that would overbook simply
// matches zero rows.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for capacity reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE delivery_windows
		SET capacity_reserved = capacity_reserved + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND open AND capacity_reserved + ? <= capacity_total
	`, qty, windowID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve window capacity")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientCapacity, "delivery window is full or closed").
			WithDetails(map[string]any{"window_id": windowID.String(), "quantity": qty})
	}
	return nil
}

// Release hands capacity back after a cancellation or forfeiture. The guard
// keeps the counter from going negative if a release is replayed.
func (s *service) Release(ctx context.Context, tx *gorm.DB, windowID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for capacity release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE delivery_windows
		SET capacity_reserved = capacity_reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND capacity_reserved >= ?
	`, qty, windowID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release window capacity")
	}
	return nil
}

func (s *service) Window(ctx context.Context, windowID uuid.UUID) (*models.DeliveryWindow, error) {
	var window models.DeliveryWindow
	if err := s.db.WithContext(ctx).First(&window, "id = ?", windowID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery window not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery window")
	}
	return &window, nil
}
