package model

import (
	"time"

	"ai-insights-be/pkg/chart"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id              uuid.UUID                          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId   uuid.UUID                          `gorm:"type:uuid;not null;index"`
	Role            string                             `gorm:"type:varchar(50);not null"`
	Chat            string                             `gorm:"type:text;not null"`
	Charts          datatypes.JSONSlice[chart.Spec]    `gorm:"type:jsonb"`
	Insights        datatypes.JSONSlice[chart.Insight] `gorm:"type:jsonb"`
	Intent          string                             `gorm:"type:varchar(32)"`
	Degraded        bool                               `gorm:"not null;default:false"`
	DegradedReasons datatypes.JSONSlice[string]        `gorm:"type:jsonb"`
	CreatedAt       time.Time                          `gorm:"autoCreateTime"`
	UpdatedAt       time.Time                          `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt                     `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
