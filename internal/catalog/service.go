package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
)

// Service is the read side of the product catalog: box presets, extra
// products, and the open delivery windows the storefront can book into.
type Service interface {
	BoxPreset(ctx context.Context, id uuid.UUID) (*models.BoxPreset, error)
	ExtraProduct(ctx context.Context, id uuid.UUID) (*models.ExtraProduct, error)
	ListBoxPresets(ctx context.Context, line enums.ProductLine) ([]models.BoxPreset, error)
	ListExtraProducts(ctx context.Context, line enums.ProductLine) ([]models.ExtraProduct, error)
	ListOpenWindows(ctx context.Context, line enums.ProductLine) ([]models.DeliveryWindow, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	return &service{db: db}, nil
}

func (s *service) BoxPreset(ctx context.Context, id uuid.UUID) (*models.BoxPreset, error) {
	var preset models.BoxPreset
	err := s.db.WithContext(ctx).First(&preset, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "box preset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load box preset")
	}
	return &preset, nil
}

func (s *service) ExtraProduct(ctx context.Context, id uuid.UUID) (*models.ExtraProduct, error) {
	var product models.ExtraProduct
	err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "extra product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load extra product")
	}
	return &product, nil
}

func (s *service) ListBoxPresets(ctx context.Context, line enums.ProductLine) ([]models.BoxPreset, error) {
	query := s.db.WithContext(ctx).Where("active = true")
	if strings.TrimSpace(string(line)) != "" {
		query = query.Where("product_line = ?", line)
	}
	var presets []models.BoxPreset
	if err := query.Order("price_cents asc").Find(&presets).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list box presets")
	}
	return presets, nil
}

func (s *service) ListExtraProducts(ctx context.Context, line enums.ProductLine) ([]models.ExtraProduct, error) {
	query := s.db.WithContext(ctx).Where("active = true")
	if strings.TrimSpace(string(line)) != "" {
		query = query.Where("product_line = ?", line)
	}
	var products []models.ExtraProduct
	if err := query.Order("name asc").Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list extra products")
	}
	return products, nil
}

func (s *service) ListOpenWindows(ctx context.Context, line enums.ProductLine) ([]models.DeliveryWindow, error) {
	query := s.db.WithContext(ctx).Where("open = true")
	if strings.TrimSpace(string(line)) != "" {
		query = query.Where("product_line = ?", line)
	}
	var windows []models.DeliveryWindow
	if err := query.Order("starts_on asc").Find(&windows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery windows")
	}
	return windows, nil
}
