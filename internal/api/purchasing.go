package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/purchase"
)

// purchasingRequest is the body for POST and PUT
// .../purchasing-information.
type purchasingRequest struct {
	Price                string `json:"price"`
	TimestampPurchase    int64  `json:"timestamp_purchase"`
	TimestampWarrantyEnd int64  `json:"timestamp_warranty_end"`
	CostCentre           *int64 `json:"cost_centre,omitempty"`
	Seller               string `json:"seller"`
}

// handleGetPurchasing returns the device's purchasing record.
func (s *Server) handleGetPurchasing(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	info, err := s.purchaseRepo.GetByDeviceID(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, purchase.ErrNotFound) {
			// Distinguish missing record from missing device.
			if _, devErr := s.registry.GetDevice(r.Context(), deviceID); errors.Is(devErr, device.ErrDeviceNotFound) {
				writeNotFound(w, "device not found")
				return
			}
			writeNotFound(w, "device has no purchasing information")
			return
		}
		s.logger.Error("get purchasing failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to get purchasing information")
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleCreatePurchasing attaches a purchasing record to a device.
func (s *Server) handleCreatePurchasing(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req purchasingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	info := &purchase.Information{
		DeviceID:             deviceID,
		Price:                req.Price,
		TimestampPurchase:    req.TimestampPurchase,
		TimestampWarrantyEnd: req.TimestampWarrantyEnd,
		CostCentre:           req.CostCentre,
		Seller:               req.Seller,
	}

	if err := s.purchaseRepo.Create(r.Context(), info); err != nil {
		switch {
		case errors.Is(err, purchase.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, purchase.ErrAlreadyExists):
			writeConflict(w, "device already has purchasing information")
		case errors.Is(err, purchase.ErrInvalidPrice):
			writeBadRequest(w, "price must be a decimal amount")
		case errors.Is(err, purchase.ErrInvalidSeller):
			writeBadRequest(w, "seller is required")
		default:
			s.logger.Error("create purchasing failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to create purchasing information")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("create", "purchasing_information", deviceID, claims.Subject, map[string]any{
		"price":  info.Price,
		"seller": info.Seller,
	})

	writeJSON(w, http.StatusCreated, info)
}

// handleUpdatePurchasing corrects the device's purchasing record.
func (s *Server) handleUpdatePurchasing(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req purchasingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	info := &purchase.Information{
		DeviceID:             deviceID,
		Price:                req.Price,
		TimestampPurchase:    req.TimestampPurchase,
		TimestampWarrantyEnd: req.TimestampWarrantyEnd,
		CostCentre:           req.CostCentre,
		Seller:               req.Seller,
	}

	if err := s.purchaseRepo.Update(r.Context(), info); err != nil {
		switch {
		case errors.Is(err, purchase.ErrNotFound):
			writeNotFound(w, "device has no purchasing information")
		case errors.Is(err, purchase.ErrInvalidPrice):
			writeBadRequest(w, "price must be a decimal amount")
		case errors.Is(err, purchase.ErrInvalidSeller):
			writeBadRequest(w, "seller is required")
		default:
			s.logger.Error("update purchasing failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to update purchasing information")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "purchasing_information", deviceID, claims.Subject, nil)

	// Re-read so the response carries the stored record ID.
	stored, err := s.purchaseRepo.GetByDeviceID(r.Context(), deviceID)
	if err != nil {
		writeJSON(w, http.StatusOK, info)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}
