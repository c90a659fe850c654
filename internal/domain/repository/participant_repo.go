package repository

import (
	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// ParticipantRepository определяет методы для работы с участниками сессии.
// Серия (streak), жизни и выбывание мутируются только внутри транзакции
// записи ответа (AnswerRepository.RecordScored), не здесь.
type ParticipantRepository interface {
	Create(participant *entity.Participant) error
	GetByID(id uint) (*entity.Participant, error)
	GetBySessionID(sessionID uint) ([]entity.Participant, error)
	CountBySessionID(sessionID uint) (int64, error)
}
