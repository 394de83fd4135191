package internal_services

import (
	"context"
	"errors"

	internal_entity "github.com/shiraai/api/conversation-api/internal/entity"
)

var (
	ErrPromptLookup       = errors.New("failed to fetch conversation prompts")
	ErrNoPrompts          = errors.New("no conversation prompts available")
	ErrConversationCreate = errors.New("failed to create conversation session")
	ErrConversationLookup = errors.New("conversation not found")
)

const (
	DefaultSessionType = "conversation"
	DefaultDifficulty  = "beginner"
	DefaultCategory    = "general"

	LiveSessionMessage = "Live session initiated successfully"
)

type LiveSessionRequest struct {
	UserID      string
	SessionType string
	Difficulty  string
	Category    string
}

// WithDefaults fills session type, difficulty and category when blank.
func (r LiveSessionRequest) WithDefaults() LiveSessionRequest {
	if r.SessionType == "" {
		r.SessionType = DefaultSessionType
	}
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
	if r.Category == "" {
		r.Category = DefaultCategory
	}
	return r
}

type LiveSession struct {
	Conversation *internal_entity.Conversation
	Prompt       *internal_entity.Prompt
	Message      string
}

type ConversationService interface {
	// SelectPrompt picks a random prompt matching category and difficulty,
	// falling back to any prompt. Fails with ErrNoPrompts on an empty table.
	SelectPrompt(ctx context.Context, category, difficulty string) (*internal_entity.Prompt, error)
	CreateConversation(ctx context.Context, userID, sessionType string, prompt *internal_entity.Prompt, metadata internal_entity.ConversationMetadata) (*internal_entity.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*internal_entity.Conversation, error)
	InitiateLiveSession(ctx context.Context, req LiveSessionRequest) (*LiveSession, error)
	// CompleteConversation closes a conversation of the user to further
	// recording. Completing it twice is not an error.
	CompleteConversation(ctx context.Context, conversationID, userID string) error
}
