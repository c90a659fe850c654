package entity

import (
	"time"
)

// Константы статусов сессии
const (
	SessionStatusWaiting  = "waiting"
	SessionStatusActive   = "active"
	SessionStatusFinished = "finished"
)

// PinLength - длина числового PIN-кода сессии
const PinLength = 6

// Session представляет один живой запуск викторины, идентифицируемый PIN-кодом.
// PIN уникален только среди незавершенных сессий (partial unique index в БД);
// PIN завершенной сессии может быть переиспользован.
type Session struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Pin    string `gorm:"size:6;not null;index" json:"pin"`
	QuizID uint   `gorm:"not null;index" json:"quiz_id"`
	HostID uint   `gorm:"not null;index" json:"host_id"`
	Status string `gorm:"size:20;not null;default:'waiting';index" json:"status"`

	// CurrentQuestionID не nil тогда и только тогда, когда Status = active
	CurrentQuestionID *uint `json:"current_question_id,omitempty"`

	// CurrentQuestionStartedAt - серверная отметка старта обратного отсчета.
	// Единственный источник времени, которому клиенты доверяют больше своего.
	CurrentQuestionStartedAt *time.Time `json:"current_question_started_at,omitempty"`

	GameMode   string     `gorm:"size:20;not null;default:'classic'" json:"game_mode"`
	ModeConfig ModeConfig `gorm:"type:jsonb;not null" json:"mode_config"`

	// Version - монотонный токен для optimistic locking переходов состояния.
	// Переход принимается только если вызывающий передал актуальную версию.
	Version int `gorm:"not null;default:0" json:"version"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Session) TableName() string {
	return "sessions"
}

// IsWaiting проверяет, находится ли сессия в зале ожидания
func (s *Session) IsWaiting() bool {
	return s.Status == SessionStatusWaiting
}

// IsActive проверяет, идет ли сессия
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsFinished проверяет, завершена ли сессия
func (s *Session) IsFinished() bool {
	return s.Status == SessionStatusFinished
}

// AcceptsAnswers сообщает, принимает ли сессия ответы на текущий вопрос
func (s *Session) AcceptsAnswers() bool {
	return s.IsActive() && s.CurrentQuestionID != nil
}
