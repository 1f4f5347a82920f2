package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smarthome/internal/models"
	"smarthome/internal/service"
)

const statusOK = "ok"

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...any) {
	if h.log != nil && err != nil {
		fields := append([]any{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Voice platform fulfillment
// @Description  Accepts SYNC, QUERY, EXECUTE and DISCONNECT intent envelopes
// @Tags         smarthome
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /smarthome [post]
func (h *Handler) fulfillment(c *gin.Context) {
	var req models.IntentRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	resp, err := h.services.Fulfillment.Handle(c.Request.Context(), c.GetHeader("Authorization"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthFailure):
			h.logAndJSONError(c, http.StatusUnauthorized, "not authorized", "fulfillment_auth_failed", err,
				"request_id", req.RequestID)
		case errors.Is(err, service.ErrUnknownIntent):
			h.logAndJSONError(c, http.StatusBadRequest, err.Error(), "fulfillment_unknown_intent", err,
				"request_id", req.RequestID)
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, "fulfillment failed", "fulfillment_failed", err,
				"request_id", req.RequestID)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
