package talk_api

import (
	"context"
	"sync"

	internal_services "github.com/shiraai/api/conversation-api/internal/service"
	internal_type "github.com/shiraai/api/conversation-api/internal/type"
)

// chunkSequences hands the recorder the last chunk number of a conversation.
// Stored rows lag behind chunks still waiting for upload, so numbers handed
// out by this process are remembered as well.
type chunkSequences struct {
	chunks internal_services.AudioChunkService

	mu   sync.Mutex
	last map[string]int
}

func newChunkSequences(chunks internal_services.AudioChunkService) *chunkSequences {
	return &chunkSequences{chunks: chunks, last: make(map[string]int)}
}

func (s *chunkSequences) LastSequenceNumber(ctx context.Context, conversationID string) (int, error) {
	stored, err := s.chunks.GetLastSequenceNumber(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(stored, s.last[conversationID]), nil
}

func (s *chunkSequences) observe(chunk internal_type.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.SequenceNumber > s.last[chunk.ConversationID] {
		s.last[chunk.ConversationID] = chunk.SequenceNumber
	}
}

func (s *chunkSequences) forget(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, conversationID)
}
