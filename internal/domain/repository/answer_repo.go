package repository

import (
	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// StreakUpdate - изменения состояния участника, применяемые вместе с ответом
type StreakUpdate struct {
	CurrentStreak int
	MaxStreak     int
	LivesLeft     int
	IsEliminated  bool
}

// AnswerRepository определяет методы для работы с журналом ответов.
type AnswerRepository interface {
	// RecordScored атомарно, в одной транзакции: вставляет строку Answer,
	// инкрементирует агрегат Score (upsert) и обновляет серию/жизни участника.
	// Частично примененное состояние невозможно - либо все, либо ничего.
	// Дубликат по (participant_id, question_id) возвращает ErrDuplicateAnswer,
	// не тронув ни Score, ни участника.
	RecordScored(answer *entity.Answer, upd StreakUpdate) error

	// GetByParticipantAndQuestion возвращает ранее записанный ответ
	// (используется для идемпотентного повтора результата при дубликате)
	GetByParticipantAndQuestion(participantID, questionID uint) (*entity.Answer, error)

	GetBySession(sessionID uint) ([]entity.Answer, error)
	GetByParticipant(sessionID, participantID uint) ([]entity.Answer, error)

	// CountByQuestion возвращает число полученных ответов на вопрос
	// (счетчик "ответов получено" на экране учителя)
	CountByQuestion(sessionID, questionID uint) (int64, error)
}

// ScoreRepository определяет read-side методы агрегата очков.
// Запись Score происходит только внутри AnswerRepository.RecordScored.
type ScoreRepository interface {
	// GetBySession возвращает очки сессии по убыванию total_points
	GetBySession(sessionID uint) ([]entity.Score, error)

	GetByParticipant(participantID, sessionID uint) (*entity.Score, error)
}
