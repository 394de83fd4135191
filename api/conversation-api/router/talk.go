package conversation_routers

import (
	"github.com/gin-gonic/gin"
	talkApi "github.com/shiraai/api/conversation-api/api/talk"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/middlewares"
	"github.com/shiraai/pkg/storages"
	"github.com/shiraai/pkg/types"
)

// TalkApiRoute registers the recording socket. Browsers cannot set headers
// on a websocket handshake so the token may also arrive as ?token=.
func TalkApiRoute(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	postgres connectors.PostgresConnector,
	storage storages.Storage,
	m *metrics.Metrics,
) {
	logger.Info("TalkApiRoute added to engine.")
	api := talkApi.NewTalkApi(cfg, logger, postgres, storage, m)
	apiv1 := engine.Group("/v1/talk")
	apiv1.Use(middlewares.NewBearerAuthMiddleware(types.NewHMACVerifier(cfg.Secret), logger, middlewares.AllowQueryToken("token")))
	{
		apiv1.GET("/record/:conversationId", api.Record)
	}
}
