// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package talk_api

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	internal_capture "github.com/shiraai/api/conversation-api/internal/audio/capture"
	internal_recorder "github.com/shiraai/api/conversation-api/internal/audio/recorder"
	internal_uploader "github.com/shiraai/api/conversation-api/internal/audio/uploader"
	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	internal_conversation_service "github.com/shiraai/api/conversation-api/internal/service/conversation"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/middlewares"
	"github.com/shiraai/pkg/storages"
)

const maxControlMessageSize = 1 << 20

var recordUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type TalkApi struct {
	cfg                 *config.AppConfig
	logger              commons.Logger
	metrics             *metrics.Metrics
	storage             storages.Storage
	validate            *validator.Validate
	conversationService internal_services.ConversationService
	audioChunkService   internal_services.AudioChunkService
	sequences           *chunkSequences
}

func NewTalkApi(cfg *config.AppConfig,
	logger commons.Logger,
	postgres connectors.PostgresConnector,
	storage storages.Storage,
	m *metrics.Metrics,
) *TalkApi {
	audioChunks := internal_conversation_service.NewAudioChunkService(logger, postgres)
	return &TalkApi{
		cfg:                 cfg,
		logger:              logger,
		metrics:             m,
		storage:             storage,
		validate:            validator.New(),
		conversationService: internal_conversation_service.NewConversationService(logger, postgres),
		audioChunkService:   audioChunks,
		sequences:           newChunkSequences(audioChunks),
	}
}

// Record streams microphone audio for one conversation into chunked storage.
// Text frames carry control messages, binary frames carry PCM16LE audio.
//
// @Router /v1/talk/record/:conversationId [get]
func (api *TalkApi) Record(c *gin.Context) {
	principle, ok := middlewares.GetAuthPrinciple(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middlewares.MissingAuthorizationMessage})
		return
	}
	conversationID := c.Param("conversationId")

	conn, err := recordUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxControlMessageSize)

	rc := api.recordingConfig()
	queue := internal_uploader.NewQueue(api.logger, api.storage, api.audioChunkService,
		internal_uploader.WithRetryPolicy(internal_uploader.NewRetryPolicy(rc)),
		internal_uploader.WithMetrics(api.metrics),
		internal_uploader.WithRemoveLocal(rc.RemoveLocalAfterUpload),
	)
	device := internal_capture.NewStreamDevice(api.logger, filepath.Join(rc.TempDir, conversationID))

	session := newTalkSession(api, conn,
		api.logger.With("conversation", conversationID, "user", principle.UserID),
		conversationID, principle.UserID)
	session.device = device
	session.queue = queue
	session.controller = internal_recorder.NewController(session.logger,
		&conversationPermission{
			conversations:  api.conversationService,
			conversationID: conversationID,
			userID:         principle.UserID,
			logger:         session.logger,
		},
		device,
		queue,
		internal_recorder.WithMetrics(api.metrics),
		internal_recorder.WithBaseContext(context.Background()),
		internal_recorder.WithChunkHook(session.onChunk),
		internal_recorder.WithRotationErrorHook(session.onRotationError),
		internal_recorder.WithSequenceSource(api.sequences),
	)
	session.serve(c.Request.Context())
}

func (api *TalkApi) recordingConfig() configs.RecordingConfig {
	return api.cfg.RecordingConfig
}

// conversationPermission grants recording when the conversation exists,
// belongs to the caller and is still active.
type conversationPermission struct {
	conversations  internal_services.ConversationService
	conversationID string
	userID         string
	logger         commons.Logger
}

func (p *conversationPermission) RequestPermission(ctx context.Context) (bool, error) {
	conversation, err := p.conversations.GetConversation(ctx, p.conversationID)
	if err != nil {
		p.logger.Warnf("recording refused: %v", err)
		return false, nil
	}
	if conversation.UserId != p.userID {
		p.logger.Warnf("recording refused: conversation owned by another user")
		return false, nil
	}
	if !conversation.IsActive() {
		p.logger.Warnf("recording refused: conversation is %s", conversation.Status)
		return false, nil
	}
	return true, nil
}
