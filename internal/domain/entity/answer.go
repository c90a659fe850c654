package entity

import (
	"time"
)

// Answer - неизменяемая запись ответа участника на вопрос в рамках сессии.
// Уникальный индекс (participant_id, question_id) - ключевая гарантия
// корректности: не более одного ответа на пару участник+вопрос, сколько бы
// конкурентных/повторных попыток ни пришло. Строки только добавляются
// (append-only журнал, основа исторического отчета).
type Answer struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	SessionID     uint `gorm:"not null;index" json:"session_id"`
	ParticipantID uint `gorm:"not null;uniqueIndex:idx_answers_participant_question" json:"participant_id"`
	QuestionID    uint `gorm:"not null;uniqueIndex:idx_answers_participant_question" json:"question_id"`

	// AnswerText - присланное значение как есть; для matching - сериализованный JSON-объект
	AnswerText     string    `gorm:"type:text;not null" json:"answer_text"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	PointsAwarded  int       `gorm:"not null;default:0" json:"points_awarded"`
	ResponseTimeMs int64     `gorm:"not null" json:"response_time_ms"`
	AnsweredAt     time.Time `gorm:"not null" json:"answered_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}
