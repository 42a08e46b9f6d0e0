package model

import (
	"time"

	"github.com/google/uuid"
)

type DatasetVersion struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_dataset_versions_session_version"`
	Version       int       `gorm:"not null;uniqueIndex:idx_dataset_versions_session_version"`
	RowCount      int       `gorm:"not null"`
	BlobRef       string    `gorm:"type:text;not null"`
	Operation     string    `gorm:"type:varchar(64);not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (DatasetVersion) TableName() string {
	return "dataset_versions"
}
