package internal_conversation_service

import (
	"context"
	"fmt"

	internal_entity "github.com/shiraai/api/conversation-api/internal/entity"
	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/connectors"
)

type audioChunkService struct {
	logger   commons.Logger
	postgres connectors.PostgresConnector
}

func NewAudioChunkService(logger commons.Logger, postgres connectors.PostgresConnector) internal_services.AudioChunkService {
	return &audioChunkService{logger: logger, postgres: postgres}
}

func (s *audioChunkService) CreateChunk(ctx context.Context, chunk *internal_entity.ConversationAudioChunk) error {
	if err := s.postgres.DB(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("failed to save metadata for chunk %s of conversation %s: %w", chunk.ChunkId, chunk.ConversationId, err)
	}
	s.logger.Debugf("saved metadata for chunk %s of conversation %s", chunk.ChunkId, chunk.ConversationId)
	return nil
}

func (s *audioChunkService) GetChunks(ctx context.Context, conversationID string) ([]*internal_entity.ConversationAudioChunk, error) {
	var chunks []*internal_entity.ConversationAudioChunk
	if err := s.postgres.DB(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence_number ASC").
		Order("created_date ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("failed to list chunks of conversation %s: %w", conversationID, err)
	}
	return chunks, nil
}

func (s *audioChunkService) GetLastSequenceNumber(ctx context.Context, conversationID string) (int, error) {
	var last int
	if err := s.postgres.DB(ctx).
		Model(&internal_entity.ConversationAudioChunk{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(MAX(sequence_number), 0)").
		Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("failed to read last chunk number of conversation %s: %w", conversationID, err)
	}
	return last, nil
}

func (s *audioChunkService) HasChunk(ctx context.Context, conversationID string, sequenceNumber int) (bool, error) {
	var count int64
	if err := s.postgres.DB(ctx).
		Model(&internal_entity.ConversationAudioChunk{}).
		Where("conversation_id = ? AND sequence_number = ?", conversationID, sequenceNumber).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up chunk %d of conversation %s: %w", sequenceNumber, conversationID, err)
	}
	return count > 0, nil
}
