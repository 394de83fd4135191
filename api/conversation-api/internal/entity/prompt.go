// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Prompt struct {
	Id          string    `json:"id" gorm:"type:varchar(36);primaryKey;<-:create"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Content     string    `json:"content" gorm:"type:text;not null"`
	Category    string    `json:"category" gorm:"type:varchar(64);not null;index:idx_prompts_category_difficulty"`
	Difficulty  string    `json:"difficulty" gorm:"type:varchar(32);not null;index:idx_prompts_category_difficulty"`
	CreatedDate time.Time `json:"-" gorm:"type:timestamp;not null;<-:create"`
	UpdatedDate time.Time `json:"-" gorm:"type:timestamp;default:null"`
}

func (Prompt) TableName() string {
	return "prompts"
}

func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.Id == "" {
		p.Id = uuid.NewString()
	}
	if p.CreatedDate.IsZero() {
		p.CreatedDate = time.Now()
	}
	return nil
}

// CREATE TABLE prompts (
//     id VARCHAR(36) PRIMARY KEY,
//     title VARCHAR(255) NOT NULL,
//     content TEXT NOT NULL,
//     category VARCHAR(64) NOT NULL,
//     difficulty VARCHAR(32) NOT NULL,
//     created_date TIMESTAMP NOT NULL,
//     updated_date TIMESTAMP
// );
