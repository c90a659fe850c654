package repository

import (
	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// QuestionRepository определяет методы чтения вопросов.
// Контент вопросов для ядра read-only: запись выполняет внешний редактор.
type QuestionRepository interface {
	GetByID(id uint) (*entity.Question, error)

	// GetByQuizIDOrdered возвращает вопросы викторины в порядке следования
	// (sort_order, затем id как стабильный tie-breaker)
	GetByQuizIDOrdered(quizID uint) ([]entity.Question, error)

	CountByQuizID(quizID uint) (int64, error)
}

// QuizRepository определяет методы чтения викторин (read-only источник контента)
type QuizRepository interface {
	GetByID(id uint) (*entity.Quiz, error)

	// GetWithQuestions возвращает викторину с вопросами в порядке следования
	GetWithQuestions(id uint) (*entity.Quiz, error)
}
