package health_check_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
)

type HealthCheckApi struct {
	cfg        *config.AppConfig
	logger     commons.Logger
	connectors []connectors.Connector
}

func New(cfg *config.AppConfig, logger commons.Logger, conns ...connectors.Connector) *HealthCheckApi {
	return &HealthCheckApi{cfg: cfg, logger: logger, connectors: conns}
}

// Healthz reports that the process is serving.
func (h *HealthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true, "service": h.cfg.Name, "version": h.cfg.Version})
}

// Readiness fails while any backing connector is unreachable.
func (h *HealthCheckApi) Readiness(c *gin.Context) {
	status := make(map[string]bool, len(h.connectors))
	ready := true
	for _, conn := range h.connectors {
		ok := conn.IsConnected(c.Request.Context())
		status[conn.Name()] = ok
		if !ok {
			h.logger.Warnf("readiness check failed for %s", conn.Name())
			ready = false
		}
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "connectors": status})
}
