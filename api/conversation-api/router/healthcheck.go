package conversation_routers

import (
	"github.com/gin-gonic/gin"
	healthCheckApi "github.com/shiraai/api/conversation-api/api/health"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, m *metrics.Metrics, conns ...connectors.Connector) {
	logger.Info("Internal HealthCheckRoutes and Connectors added to engine.")
	apiv1 := engine.Group("")
	hcApi := healthCheckApi.New(cfg, logger, conns...)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
		apiv1.GET("/metrics", gin.WrapH(m.Handler()))
	}
}
