package handlers

import (
	"github.com/gin-gonic/gin"

	"smarthome/internal/service"
)

// full router over mocked services, shared by the handler tests
func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil)
	return h.InitRoutes()
}
