package internal_services

import (
	"context"

	internal_entity "github.com/shiraai/api/conversation-api/internal/entity"
)

type AudioChunkService interface {
	CreateChunk(ctx context.Context, chunk *internal_entity.ConversationAudioChunk) error
	GetChunks(ctx context.Context, conversationID string) ([]*internal_entity.ConversationAudioChunk, error)
	// GetLastSequenceNumber is zero for a conversation without stored chunks.
	GetLastSequenceNumber(ctx context.Context, conversationID string) (int, error)
	HasChunk(ctx context.Context, conversationID string, sequenceNumber int) (bool, error)
}
