package controllers

import (
	"net/http"
	"strings"

	"github.com/gaardshagen/farmbox-backend/api/responses"
	"github.com/gaardshagen/farmbox-backend/internal/catalog"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

func productLineFilter(r *http.Request) (enums.ProductLine, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("product_line"))
	if raw == "" {
		return "", nil
	}
	line := enums.ProductLine(strings.ToLower(raw))
	if !line.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown product line").
			WithDetails(map[string]any{"field": "product_line"})
	}
	return line, nil
}

func ListBoxPresets(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		line, err := productLineFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		presets, err := svc.ListBoxPresets(r.Context(), line)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presets)
	}
}

func ListExtraProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		line, err := productLineFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListExtraProducts(r.Context(), line)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ListDeliveryWindows(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		line, err := productLineFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		windows, err := svc.ListOpenWindows(r.Context(), line)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, windows)
	}
}
