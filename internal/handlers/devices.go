package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smarthome/internal/models"
	"smarthome/internal/repository"
	"smarthome/internal/service"
)

// defaultUserID is the linked sample account the provisioning console
// manages when no userId accompanies a request.
const defaultUserID = "1836.15267389"

type createDeviceRequest struct {
	UserID string         `json:"userId"`
	Data   map[string]any `json:"data" binding:"required"`
}

// updateDeviceRequest keeps the nullable document fields raw so "set to
// null" and "not mentioned" stay distinguishable after decoding.
type updateDeviceRequest struct {
	UserID    string          `json:"userId"`
	DeviceID  string          `json:"deviceId" binding:"required"`
	Name      json.RawMessage `json:"name"`
	Nickname  json.RawMessage `json:"nickname"`
	ErrorCode json.RawMessage `json:"errorCode"`
	TFA       json.RawMessage `json:"tfa"`
	States    map[string]any  `json:"states"`
}

type deleteDeviceRequest struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId" binding:"required"`
}

func orDefaultUser(userID string) string {
	if userID == "" {
		return defaultUserID
	}
	return userID
}

// @Summary      Register a device
// @Tags         smarthome
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /smarthome/create [post]
// @Security     BearerAuth
func (h *Handler) createDevice(c *gin.Context) {
	var req createDeviceRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	id, err := h.services.DeviceManager.Create(c.Request.Context(), orDefaultUser(req.UserID), req.Data)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), "device_create_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deviceId": id})
}

// @Summary      Update a device document
// @Description  Absent fields are untouched, null fields are removed, states replace wholesale
// @Tags         smarthome
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /smarthome/update [post]
// @Security     BearerAuth
func (h *Handler) updateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	fields := map[string]*string{}
	rawFields := map[string]json.RawMessage{
		"name":      req.Name,
		"nickname":  req.Nickname,
		"errorCode": req.ErrorCode,
		"tfa":       req.TFA,
	}
	for key, raw := range rawFields {
		if raw == nil {
			continue
		}
		if string(raw) == "null" {
			fields[key] = nil
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "field " + key + " must be a string or null"})
			return
		}
		fields[key] = &v
	}
	if len(fields) == 0 {
		fields = nil
	}

	update := service.DeviceUpdate{
		UserID:   orDefaultUser(req.UserID),
		DeviceID: req.DeviceID,
		Patch: models.DevicePatch{
			Fields: fields,
			States: req.States,
		},
		NotifyStates: req.States,
	}
	if err := h.services.DeviceManager.Update(c.Request.Context(), update); err != nil {
		switch {
		case errors.Is(err, repository.ErrDeviceNotFound):
			h.logAndJSONError(c, http.StatusNotFound, "device not found", "device_update_missing", err,
				"device_id", req.DeviceID)
		case errors.Is(err, service.ErrEmptyUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, "failed to update device", "device_update_failed", err,
				"device_id", req.DeviceID)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Delete a device
// @Tags         smarthome
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /smarthome/delete [post]
// @Security     BearerAuth
func (h *Handler) deleteDevice(c *gin.Context) {
	var req deleteDeviceRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	if err := h.services.DeviceManager.Delete(c.Request.Context(), orDefaultUser(req.UserID), req.DeviceID); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to delete device", "device_delete_failed", err,
			"device_id", req.DeviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
