package internal_entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationAudioChunk is the metadata row written after a chunk reaches
// object storage.
type ConversationAudioChunk struct {
	Id             string    `json:"id" gorm:"type:varchar(36);primaryKey;<-:create"`
	ConversationId string    `json:"conversationId" gorm:"type:varchar(36);not null;uniqueIndex:idx_conversation_audio_chunks_sequence,priority:1"`
	ChunkId        string    `json:"chunkId" gorm:"type:varchar(64);not null"`
	SequenceNumber int       `json:"sequenceNumber" gorm:"type:integer;not null;uniqueIndex:idx_conversation_audio_chunks_sequence,priority:2"`
	StoragePath    string    `json:"storagePath" gorm:"type:text;not null"`
	DurationMs     int64     `json:"durationMs" gorm:"type:bigint;not null"`
	SizeBytes      int64     `json:"sizeBytes" gorm:"type:bigint;not null"`
	Timestamp      time.Time `json:"timestamp" gorm:"column:timestamp;type:timestamp;not null"`
	CreatedDate    time.Time `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
}

func (ConversationAudioChunk) TableName() string {
	return "conversation_audio_chunks"
}

func (c *ConversationAudioChunk) BeforeCreate(tx *gorm.DB) error {
	if c.Id == "" {
		c.Id = uuid.NewString()
	}
	if c.CreatedDate.IsZero() {
		c.CreatedDate = time.Now()
	}
	return nil
}
