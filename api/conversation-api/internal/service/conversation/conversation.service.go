// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_conversation_service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	internal_entity "github.com/shiraai/api/conversation-api/internal/entity"
	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
	"golang.org/x/sync/singleflight"
)

const (
	matchLimit    = 10
	fallbackLimit = 5
)

type conversationService struct {
	logger   commons.Logger
	postgres connectors.PostgresConnector
	group    singleflight.Group
	// pick returns an index in [0, n)
	pick func(n int) int
	now  func() time.Time
}

type Option func(*conversationService)

// WithPicker replaces the random prompt picker.
func WithPicker(pick func(n int) int) Option {
	return func(s *conversationService) { s.pick = pick }
}

func WithClock(now func() time.Time) Option {
	return func(s *conversationService) { s.now = now }
}

func NewConversationService(logger commons.Logger, postgres connectors.PostgresConnector, opts ...Option) internal_services.ConversationService {
	s := &conversationService{
		logger:   logger,
		postgres: postgres,
		pick:     rand.IntN,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// candidates loads prompts for the pair. Concurrent loads for the same pair
// share one query.
func (s *conversationService) candidates(ctx context.Context, category, difficulty string) ([]*internal_entity.Prompt, error) {
	v, err, _ := s.group.Do(category+"|"+difficulty, func() (interface{}, error) {
		db := s.postgres.CachedDB(ctx)
		var prompts []*internal_entity.Prompt
		if err := db.
			Select("id, title, content, category, difficulty").
			Where("category = ? AND difficulty = ?", category, difficulty).
			Limit(matchLimit).
			Find(&prompts).Error; err != nil {
			return nil, err
		}
		if len(prompts) > 0 {
			return prompts, nil
		}

		s.logger.Debugf("no prompt for category=%s difficulty=%s, using fallback", category, difficulty)
		if err := s.postgres.CachedDB(ctx).
			Select("id, title, content, category, difficulty").
			Limit(fallbackLimit).
			Find(&prompts).Error; err != nil {
			return nil, err
		}
		return prompts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*internal_entity.Prompt), nil
}

func (s *conversationService) SelectPrompt(ctx context.Context, category, difficulty string) (*internal_entity.Prompt, error) {
	prompts, err := s.candidates(ctx, category, difficulty)
	if err != nil {
		s.logger.Errorf("error fetching prompts: %v", err)
		return nil, fmt.Errorf("%w: %v", internal_services.ErrPromptLookup, err)
	}
	if len(prompts) == 0 {
		return nil, internal_services.ErrNoPrompts
	}
	return prompts[s.pick(len(prompts))], nil
}

func (s *conversationService) CreateConversation(ctx context.Context, userID, sessionType string, prompt *internal_entity.Prompt, metadata internal_entity.ConversationMetadata) (*internal_entity.Conversation, error) {
	conversation := &internal_entity.Conversation{
		UserId:      userID,
		PromptId:    prompt.Id,
		SessionType: sessionType,
		Status:      internal_entity.ConversationStatusActive,
		Metadata:    metadata,
	}
	if err := s.postgres.DB(ctx).Create(conversation).Error; err != nil {
		s.logger.Errorf("error creating conversation for user %s: %v", userID, err)
		return nil, fmt.Errorf("%w: %v", internal_services.ErrConversationCreate, err)
	}
	s.logger.Infof("created conversation %s for user %s with prompt %s", conversation.Id, userID, prompt.Id)
	return conversation, nil
}

func (s *conversationService) GetConversation(ctx context.Context, conversationID string) (*internal_entity.Conversation, error) {
	var conversation internal_entity.Conversation
	if err := s.postgres.DB(ctx).Where("id = ?", conversationID).First(&conversation).Error; err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internal_services.ErrConversationLookup, conversationID, err)
	}
	return &conversation, nil
}

func (s *conversationService) CompleteConversation(ctx context.Context, conversationID, userID string) error {
	tx := s.postgres.DB(ctx).
		Model(&internal_entity.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"status":       internal_entity.ConversationStatusCompleted,
			"updated_date": s.now(),
		})
	if tx.Error != nil {
		s.logger.Errorf("error completing conversation %s: %v", conversationID, tx.Error)
		return fmt.Errorf("failed to complete conversation %s: %w", conversationID, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", internal_services.ErrConversationLookup, conversationID)
	}
	s.logger.Infof("conversation %s completed", conversationID)
	return nil
}

// InitiateLiveSession selects a prompt and opens a conversation for the user.
// Either step failing fails the whole call.
func (s *conversationService) InitiateLiveSession(ctx context.Context, req internal_services.LiveSessionRequest) (*internal_services.LiveSession, error) {
	req = req.WithDefaults()
	prompt, err := s.SelectPrompt(ctx, req.Category, req.Difficulty)
	if err != nil {
		return nil, err
	}
	conversation, err := s.CreateConversation(ctx, req.UserID, req.SessionType, prompt, internal_entity.ConversationMetadata{
		Difficulty: req.Difficulty,
		Category:   req.Category,
		StartedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &internal_services.LiveSession{
		Conversation: conversation,
		Prompt:       prompt,
		Message:      internal_services.LiveSessionMessage,
	}, nil
}
