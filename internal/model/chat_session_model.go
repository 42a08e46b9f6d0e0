package model

import (
	"time"

	"ai-insights-be/pkg/dataset"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatSession struct {
	Id             uuid.UUID                           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title          string                              `gorm:"type:text;not null"`
	Columns        datatypes.JSONSlice[string]         `gorm:"type:jsonb"`
	RawData        datatypes.JSONSlice[dataset.Row]    `gorm:"type:jsonb"`
	Summary        datatypes.JSONType[dataset.Summary] `gorm:"type:jsonb"`
	CurrentVersion int                                 `gorm:"not null;default:1"`
	CreatedAt      time.Time                           `gorm:"autoCreateTime"`
	UpdatedAt      time.Time                           `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt                      `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
