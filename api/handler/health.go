package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Healthz answers liveness probes. It reports the process is up and
// serving; dependency health is visible through /metrics instead.
func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.Status(http.StatusOK)
}
