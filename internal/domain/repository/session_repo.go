package repository

import (
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// SessionRepository определяет методы для работы с сессиями.
// Все переходы состояния выполняются одним UPDATE с проверкой версии
// (optimistic locking): устаревший писатель получает ErrVersionConflict
// и обязан перечитать состояние, а не повторять запись вслепую.
type SessionRepository interface {
	// Create сохраняет новую сессию. Возвращает ErrPinTaken, если PIN
	// конфликтует с другой незавершенной сессией (partial unique index).
	Create(session *entity.Session) error

	GetByID(id uint) (*entity.Session, error)

	// GetByPin возвращает незавершенную сессию с данным PIN
	GetByPin(pin string) (*entity.Session, error)

	// StartSession атомарно переводит waiting → active, устанавливая первый
	// вопрос и серверную отметку старта отсчета.
	StartSession(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error

	// AdvanceQuestion атомарно переставляет указатель текущего вопроса
	// и обновляет отметку старта отсчета. Единственный способ сбросить таймер.
	AdvanceQuestion(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error

	// FinishSession атомарно переводит сессию в finished из waiting или active,
	// очищая указатель текущего вопроса и проставляя finished_at.
	FinishSession(sessionID uint, expectedVersion int, finishedAt time.Time) error

	// ListByHost возвращает сессии учителя с пагинацией
	ListByHost(hostID uint, limit, offset int) ([]entity.Session, error)

	// HasUnfinishedByQuiz сообщает, есть ли незавершенные сессии по викторине
	// (используется внешним редактором для блокировки правок контента)
	HasUnfinishedByQuiz(quizID uint) (bool, error)

	// Delete удаляет сессию вместе со всем деревом (участники, ответы, очки)
	Delete(id uint) error
}
