package entity

import (
	"time"
)

// Score - материализованный агрегат очков участника в сессии (для лидерборда).
// Одна строка на пару (participant_id, session_id); создается при первом
// оцененном ответе и инкрементируется атомарно вместе со вставкой Answer.
// Инвариант: total_points всегда равен сумме points_awarded по ответам участника.
type Score struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ParticipantID uint      `gorm:"not null;uniqueIndex:idx_scores_participant_session" json:"participant_id"`
	SessionID     uint      `gorm:"not null;uniqueIndex:idx_scores_participant_session;index" json:"session_id"`
	TotalPoints   int       `gorm:"not null;default:0" json:"total_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Score) TableName() string {
	return "scores"
}
