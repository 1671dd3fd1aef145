package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalorders "github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

func TestAddOrderExtraForwardsLine(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	svc := stubOrdersService{
		getByNumFn: func(ctx context.Context, orderNumber string) (*internalorders.OrderView, error) {
			if orderNumber != "FB-2401-0011" {
				t.Fatalf("unexpected order number %q", orderNumber)
			}
			return &internalorders.OrderView{Order: &models.Order{ID: orderID}}, nil
		},
		transitionFn: func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.TransitionResult, error) {
			if input.OrderID != orderID || input.Action != enums.ActionAddExtra {
				t.Fatalf("unexpected transition %+v", input)
			}
			if input.Data.ExtraProductID != productID {
				t.Fatalf("extra product id not forwarded")
			}
			if !input.Data.Quantity.Equal(decimal.RequireFromString("1.5")) {
				t.Fatalf("unexpected quantity %s", input.Data.Quantity)
			}
			if input.Actor != "" {
				t.Fatalf("customer path must not carry an actor")
			}
			return &internalorders.TransitionResult{
				Order: &internalorders.OrderView{Order: &models.Order{ID: orderID}},
			}, nil
		},
	}

	handler := AddOrderExtra(svc, nil)
	body := `{"extra_product_id":"` + productID.String() + `","quantity":"1.5"}`
	req := withOrderNumber(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "FB-2401-0011")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCancelOrderReleasesInventory(t *testing.T) {
	orderID := uuid.New()
	svc := stubOrdersService{
		getByNumFn: func(ctx context.Context, orderNumber string) (*internalorders.OrderView, error) {
			return &internalorders.OrderView{Order: &models.Order{ID: orderID}}, nil
		},
		transitionFn: func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.TransitionResult, error) {
			if input.Action != enums.ActionCancelOrder {
				t.Fatalf("unexpected action %s", input.Action)
			}
			if !input.ReleaseInventory {
				t.Fatal("customer cancel must release inventory")
			}
			return &internalorders.TransitionResult{
				Order: &internalorders.OrderView{Order: &models.Order{ID: orderID}},
			}, nil
		},
	}

	handler := CancelOrder(svc, nil)
	req := withOrderNumber(httptest.NewRequest(http.MethodPost, "/", nil), "FB-2401-0012")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestUpdateOrderDeliveryMapsMethod(t *testing.T) {
	orderID := uuid.New()
	svc := stubOrdersService{
		getByNumFn: func(ctx context.Context, orderNumber string) (*internalorders.OrderView, error) {
			return &internalorders.OrderView{Order: &models.Order{ID: orderID}}, nil
		},
		transitionFn: func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.TransitionResult, error) {
			if input.Action != enums.ActionUpdateDelivery {
				t.Fatalf("unexpected action %s", input.Action)
			}
			if input.Data.DeliveryMethod == nil || *input.Data.DeliveryMethod != enums.DeliveryMethodPostal {
				t.Fatalf("delivery method not mapped: %v", input.Data.DeliveryMethod)
			}
			if input.Data.PostalCode == nil || *input.Data.PostalCode != "7030" {
				t.Fatalf("postal code not forwarded")
			}
			return &internalorders.TransitionResult{
				Order: &internalorders.OrderView{Order: &models.Order{ID: orderID}},
			}, nil
		},
	}

	handler := UpdateOrderDelivery(svc, nil)
	body := `{"delivery_method":"postal","postal_code":"7030","city":"Trondheim"}`
	req := withOrderNumber(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), "FB-2401-0013")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
