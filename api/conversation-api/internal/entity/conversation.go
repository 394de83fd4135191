// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationStatusActive    = "active"
	ConversationStatusCompleted = "completed"
)

// ConversationMetadata is stored as a json document in a text column.
type ConversationMetadata struct {
	Difficulty string    `json:"difficulty"`
	Category   string    `json:"category"`
	StartedAt  time.Time `json:"startedAt"`
}

func (m ConversationMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ConversationMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = ConversationMetadata{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	default:
		return fmt.Errorf("unsupported conversation metadata type %T", src)
	}
}

type Conversation struct {
	Id          string               `json:"id" gorm:"type:varchar(36);primaryKey;<-:create"`
	UserId      string               `json:"userId" gorm:"type:varchar(64);not null;index"`
	PromptId    string               `json:"promptId" gorm:"type:varchar(36);not null"`
	SessionType string               `json:"sessionType" gorm:"type:varchar(64);not null"`
	Status      string               `json:"status" gorm:"type:varchar(32);not null"`
	Metadata    ConversationMetadata `json:"metadata" gorm:"type:text"`
	CreatedDate time.Time            `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
	UpdatedDate time.Time            `json:"updatedDate" gorm:"type:timestamp;default:null"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.Id == "" {
		c.Id = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ConversationStatusActive
	}
	if c.CreatedDate.IsZero() {
		c.CreatedDate = time.Now()
	}
	return nil
}

func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusActive
}
