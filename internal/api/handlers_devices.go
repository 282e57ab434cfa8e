// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/DummyC/Bantay-v2/internal/auth"
	"github.com/DummyC/Bantay-v2/internal/models"
)

// DeviceReader lists registered vessel devices.
type DeviceReader interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// DevicesHandler serves the device registry endpoints.
type DevicesHandler struct {
	jwt     *auth.JWTManager
	devices DeviceReader
}

// NewDevicesHandler creates the device registry handler.
func NewDevicesHandler(jwt *auth.JWTManager, devices DeviceReader) *DevicesHandler {
	return &DevicesHandler{jwt: jwt, devices: devices}
}

// List handles GET /api/v1/devices. Administrators and coast guard see
// every device; fisherfolk only their own.
func (h *DevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, role, ok := h.authenticate(rw, r)
	if !ok {
		return
	}

	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if !role.SeesAllDevices() {
		devices = ownedDevices(devices, userID)
	}
	rw.Success(map[string]interface{}{"devices": devices})
}

// authenticate extracts and validates the bearer token, writing the
// error response itself on failure.
func (h *DevicesHandler) authenticate(rw *ResponseWriter, r *http.Request) (int64, models.Role, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		rw.Unauthorized("Missing authorization header")
		return 0, "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		rw.Unauthorized("Authorization header must use Bearer scheme")
		return 0, "", false
	}

	userID, role, err := h.jwt.ValidateToken(token)
	if err != nil {
		rw.Unauthorized("Invalid or expired token")
		return 0, "", false
	}
	return userID, role, true
}

func ownedDevices(devices []models.Device, ownerID int64) []models.Device {
	owned := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		if d.OwnerID != nil && *d.OwnerID == ownerID {
			owned = append(owned, d)
		}
	}
	return owned
}
