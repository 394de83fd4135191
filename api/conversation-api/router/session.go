package conversation_routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	sessionApi "github.com/shiraai/api/conversation-api/api/session"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/middlewares"
	"github.com/shiraai/pkg/types"
)

// LiveSessionApiRoute registers the live session endpoints. End users
// authenticate with a bearer token, backend services with the api key.
func LiveSessionApiRoute(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	postgres connectors.PostgresConnector,
	m *metrics.Metrics,
) {
	logger.Info("LiveSessionApiRoute added to engine.")
	api := sessionApi.NewSessionApi(cfg, logger, postgres, m)
	apiv1 := engine.Group("/v1/live-session")
	{
		apiv1.POST("", middlewares.NewBearerAuthMiddleware(types.NewHMACVerifier(cfg.Secret), logger), api.LiveSession)
		apiv1.POST("/user", middlewares.NewApiKeyMiddleware(cfg.ServiceApiKey, logger), api.LiveSessionForUser)
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			apiv1.Handle(method, "", api.MethodNotAllowed)
		}
	}
}
