package mapper

import (
	"time"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/model"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:             s.Id,
		Title:          s.Title,
		Columns:        []string(s.Columns),
		RawData:        []dataset.Row(s.RawData),
		Summary:        s.Summary.Data(),
		CurrentVersion: s.CurrentVersion,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:             s.Id,
		Title:          s.Title,
		Columns:        datatypes.JSONSlice[string](s.Columns),
		RawData:        datatypes.JSONSlice[dataset.Row](s.RawData),
		Summary:        datatypes.NewJSONType(s.Summary),
		CurrentVersion: s.CurrentVersion,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt *time.Time
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !msg.UpdatedAt.IsZero() {
		t := msg.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatMessage{
		Id:              msg.Id,
		ChatSessionId:   msg.ChatSessionId,
		Role:            msg.Role,
		Chat:            msg.Chat,
		Charts:          msg.Charts,
		Insights:        msg.Insights,
		Intent:          msg.Intent,
		Degraded:        msg.Degraded,
		DegradedReasons: msg.DegradedReasons,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if msg.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *msg.DeletedAt, Valid: true}
	} else if msg.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if msg.UpdatedAt != nil {
		updatedAt = *msg.UpdatedAt
	}

	return &model.ChatMessage{
		Id:              msg.Id,
		ChatSessionId:   msg.ChatSessionId,
		Role:            msg.Role,
		Chat:            msg.Chat,
		Charts:          msg.Charts,
		Insights:        msg.Insights,
		Intent:          msg.Intent,
		Degraded:        msg.Degraded,
		DegradedReasons: msg.DegradedReasons,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}

func (m *ChatMapper) ChatMessagesToEntities(models []*model.ChatMessage) []*entity.ChatMessage {
	entities := make([]*entity.ChatMessage, len(models))
	for i, msg := range models {
		entities[i] = m.ChatMessageToEntity(msg)
	}
	return entities
}

// ChatMessageToHistory converts a stored message into the turn shape the
// pipeline reads.
func (m *ChatMapper) ChatMessageToHistory(msg *entity.ChatMessage) chat.Message {
	return chat.Message{
		Role:      msg.Role,
		Content:   msg.Chat,
		Charts:    msg.Charts,
		Insights:  msg.Insights,
		Timestamp: msg.CreatedAt,
	}
}
