// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package session_api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	internal_conversation_service "github.com/shiraai/api/conversation-api/internal/service/conversation"
	"github.com/shiraai/config"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"github.com/shiraai/pkg/metrics"
	"github.com/shiraai/pkg/middlewares"
)

const (
	methodNotAllowedMessage = "Method not allowed"
	missingFieldsMessage    = "Missing required fields: userId and sessionType"
	invalidBodyMessage      = "Invalid request body"
	internalErrorMessage    = "Internal server error"
)

type LiveSessionRequest struct {
	UserID      string `json:"userId" validate:"omitempty,max=64"`
	SessionType string `json:"sessionType" validate:"omitempty,max=64"`
	Difficulty  string `json:"difficulty" validate:"omitempty,max=64"`
	Category    string `json:"category" validate:"omitempty,max=128"`
}

type PromptResponse struct {
	Id         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type LiveSessionResponse struct {
	ConversationID string         `json:"conversationId"`
	Prompt         PromptResponse `json:"prompt"`
	Message        string         `json:"message"`
}

type SessionApi struct {
	cfg                 *config.AppConfig
	logger              commons.Logger
	metrics             *metrics.Metrics
	validate            *validator.Validate
	conversationService internal_services.ConversationService
}

func NewSessionApi(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector, m *metrics.Metrics) *SessionApi {
	return NewSessionApiWithService(cfg, logger, internal_conversation_service.NewConversationService(logger, postgres), m)
}

func NewSessionApiWithService(cfg *config.AppConfig, logger commons.Logger, svc internal_services.ConversationService, m *metrics.Metrics) *SessionApi {
	return &SessionApi{
		cfg:                 cfg,
		logger:              logger,
		metrics:             m,
		validate:            validator.New(),
		conversationService: svc,
	}
}

// LiveSession opens a conversation for the bearer token's user.
//
// @Router /v1/live-session [post]
func (api *SessionApi) LiveSession(c *gin.Context) {
	principle, ok := middlewares.GetAuthPrinciple(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middlewares.MissingAuthorizationMessage})
		return
	}
	req, ok := api.bind(c)
	if !ok {
		return
	}
	req.UserID = principle.UserID
	api.initiate(c, req)
}

// LiveSessionForUser is the service variant, the caller names the user.
//
// @Router /v1/live-session/user [post]
func (api *SessionApi) LiveSessionForUser(c *gin.Context) {
	req, ok := api.bind(c)
	if !ok {
		return
	}
	if req.UserID == "" || req.SessionType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingFieldsMessage})
		return
	}
	api.initiate(c, req)
}

func (api *SessionApi) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": methodNotAllowedMessage})
}

// bind accepts an empty body as a request with every field defaulted.
func (api *SessionApi) bind(c *gin.Context) (LiveSessionRequest, bool) {
	var req LiveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.logger.Warnf("unable to parse live session request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidBodyMessage})
		return req, false
	}
	if err := api.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidBodyMessage})
		return req, false
	}
	return req, true
}

func (api *SessionApi) initiate(c *gin.Context, req LiveSessionRequest) {
	api.logger.Infof("live session requested by %s, type=%s", req.UserID, req.SessionType)
	session, err := api.conversationService.InitiateLiveSession(c.Request.Context(), internal_services.LiveSessionRequest{
		UserID:      req.UserID,
		SessionType: req.SessionType,
		Difficulty:  req.Difficulty,
		Category:    req.Category,
	})
	if err != nil {
		api.logger.Errorf("live session for %s failed: %v", req.UserID, err)
		api.count("failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}
	api.count("success")
	c.JSON(http.StatusOK, LiveSessionResponse{
		ConversationID: session.Conversation.Id,
		Prompt: PromptResponse{
			Id:         session.Prompt.Id,
			Title:      session.Prompt.Title,
			Content:    session.Prompt.Content,
			Category:   session.Prompt.Category,
			Difficulty: session.Prompt.Difficulty,
		},
		Message: session.Message,
	})
}

func (api *SessionApi) count(status string) {
	if api.metrics != nil {
		api.metrics.LiveSessionsCreated.WithLabelValues(status).Inc()
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, internal_services.ErrPromptLookup):
		return "Failed to fetch conversation prompts"
	case errors.Is(err, internal_services.ErrNoPrompts):
		return "No conversation prompts available"
	case errors.Is(err, internal_services.ErrConversationCreate):
		return "Failed to create conversation session"
	default:
		return internalErrorMessage
	}
}
