package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fswalther/inventory-core/internal/device"
)

// createDeviceRequest is the request body for POST /devices. The optional
// initial_owner and initial_room seed the transaction streams atomically
// with the device row; absent fields mean the device starts with no
// derivable owner or location.
type createDeviceRequest struct {
	Title           string            `json:"title"`
	Type            device.DeviceType `json:"device_type"`
	Description     string            `json:"description"`
	Accessories     string            `json:"accessories"`
	SerialNumber    string            `json:"serial_number"`
	RZUsernameBuyer string            `json:"rz_username_buyer"`
	ImageURL        string            `json:"image_url"`
	InitialOwner    string            `json:"initial_owner,omitempty"`
	InitialRoom     string            `json:"initial_room,omitempty"`
}

// updateDeviceRequest carries the editable descriptive fields for
// PUT /devices/{id}. Identity (device_id, serial_number) is immutable.
type updateDeviceRequest struct {
	Title       *string            `json:"title,omitempty"`
	Type        *device.DeviceType `json:"device_type,omitempty"`
	Description *string            `json:"description,omitempty"`
	Accessories *string            `json:"accessories,omitempty"`
	Buyer       *string            `json:"rz_username_buyer,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty"`
}

// handleListDevices returns all devices in registration order, with
// optional query filters.
//
// Query parameters:
//   - device_type: filter by type (laptop, monitor, ...)
//   - buyer: filter by procuring account
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if typeStr := r.URL.Query().Get("device_type"); typeStr != "" {
		deviceType := device.NormalizeDeviceType(device.DeviceType(typeStr))
		if !device.IsValidDeviceType(deviceType) {
			writeBadRequest(w, "unknown device_type: "+typeStr)
			return
		}
		devices, err := s.registry.GetDevicesByType(ctx, deviceType)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if buyer := r.URL.Query().Get("buyer"); buyer != "" {
		devices, err := s.registry.GetDevicesByBuyer(ctx, buyer)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new device, optionally seeding its
// owner and location streams in the same database transaction.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := &device.Device{
		Title:           req.Title,
		Type:            req.Type,
		Description:     req.Description,
		Accessories:     req.Accessories,
		SerialNumber:    req.SerialNumber,
		RZUsernameBuyer: req.RZUsernameBuyer,
		ImageURL:        req.ImageURL,
	}

	var seed *device.InitialAssignment
	if req.InitialOwner != "" || req.InitialRoom != "" {
		seed = &device.InitialAssignment{
			Owner:    req.InitialOwner,
			RoomCode: req.InitialRoom,
		}
	}

	if err := s.registry.CreateDevice(r.Context(), dev, seed); err != nil {
		switch {
		case errors.Is(err, device.ErrSerialNumberExists):
			writeConflict(w, "serial number already registered")
		case isValidationError(err):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("create device failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("device created", "device_id", dev.ID, "serial_number", dev.SerialNumber, "created_by", claims.Subject)
	s.auditLog("create", "device", dev.ID, claims.Subject, map[string]any{
		"title":         dev.Title,
		"serial_number": dev.SerialNumber,
	})
	s.hub.Broadcast("device.created", dev)

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice replaces a device's descriptive fields (admin only).
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Type != nil {
		existing.Type = *req.Type
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Accessories != nil {
		existing.Accessories = *req.Accessories
	}
	if req.Buyer != nil {
		existing.RZUsernameBuyer = *req.Buyer
	}
	if req.ImageURL != nil {
		existing.ImageURL = *req.ImageURL
	}

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("update device failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "device", id, claims.Subject, nil)
	s.hub.Broadcast("device.updated", existing)

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device (admin only). The delete cascades
// to its transaction streams and purchasing record.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("delete device failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("device deleted", "device_id", id, "deleted_by", claims.Subject)
	s.auditLog("delete", "device", id, claims.Subject, nil)
	s.hub.Broadcast("device.deleted", map[string]string{"device_id": id})

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns registry counts by type.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

// isValidationError reports whether err is one of the device validation
// sentinels that should surface as a 400.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidTitle) ||
		errors.Is(err, device.ErrInvalidDeviceType) ||
		errors.Is(err, device.ErrInvalidSerialNumber) ||
		errors.Is(err, device.ErrInvalidBuyer)
}
