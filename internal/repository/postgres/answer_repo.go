package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo создает новый репозиторий ответов
func NewAnswerRepo(db *gorm.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// RecordScored атомарно записывает оцененный ответ.
// Одна транзакция: вставка Answer + upsert-инкремент Score + обновление участника.
// Unique constraint idx_answers_participant_question - единственный арбитр
// at-most-once: никакой check-then-insert из приложения, только проверка 23505.
// При дубликате транзакция откатывается целиком - ни очки, ни серия не трогаются.
func (r *AnswerRepo) RecordScored(answer *entity.Answer, upd repository.StreakUpdate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: participant #%d, question #%d",
					repository.ErrDuplicateAnswer, answer.ParticipantID, answer.QuestionID)
			}
			return fmt.Errorf("failed to save answer: %w", err)
		}

		// Атомарный read-modify-write агрегата одним оператором:
		// инкремент выполняется на стороне БД, lost update невозможен
		// даже если несколько путей начисления коснутся одного участника.
		upsertScore := `
		INSERT INTO scores (participant_id, session_id, total_points, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON CONFLICT (participant_id, session_id)
		DO UPDATE SET total_points = scores.total_points + EXCLUDED.total_points,
		              updated_at   = NOW()`
		if err := tx.Exec(upsertScore, answer.ParticipantID, answer.SessionID, answer.PointsAwarded).Error; err != nil {
			return fmt.Errorf("failed to upsert score: %w", err)
		}

		if err := tx.Model(&entity.Participant{}).
			Where("id = ?", answer.ParticipantID).
			Updates(map[string]interface{}{
				"current_streak": upd.CurrentStreak,
				"max_streak":     upd.MaxStreak,
				"lives_left":     upd.LivesLeft,
				"is_eliminated":  upd.IsEliminated,
			}).Error; err != nil {
			return fmt.Errorf("failed to update participant streak: %w", err)
		}

		return nil
	})
}

// GetByParticipantAndQuestion возвращает ранее записанный ответ
func (r *AnswerRepo) GetByParticipantAndQuestion(participantID, questionID uint) (*entity.Answer, error) {
	var answer entity.Answer
	err := r.db.Where("participant_id = ? AND question_id = ?", participantID, questionID).
		First(&answer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &answer, nil
}

// GetBySession возвращает все ответы сессии в хронологическом порядке
func (r *AnswerRepo) GetBySession(sessionID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("session_id = ?", sessionID).
		Order("answered_at, id").
		Find(&answers).Error
	return answers, err
}

// GetByParticipant возвращает ответы участника в рамках сессии
func (r *AnswerRepo) GetByParticipant(sessionID, participantID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("session_id = ? AND participant_id = ?", sessionID, participantID).
		Order("answered_at, id").
		Find(&answers).Error
	return answers, err
}

// CountByQuestion возвращает число полученных ответов на вопрос
func (r *AnswerRepo) CountByQuestion(sessionID, questionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Answer{}).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Count(&count).Error
	return count, err
}

// ScoreRepo реализует repository.ScoreRepository (read-side)
type ScoreRepo struct {
	db *gorm.DB
}

// NewScoreRepo создает новый репозиторий очков
func NewScoreRepo(db *gorm.DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// GetBySession возвращает очки сессии по убыванию total_points
func (r *ScoreRepo) GetBySession(sessionID uint) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.Where("session_id = ?", sessionID).
		Order("total_points DESC, participant_id").
		Find(&scores).Error
	return scores, err
}

// GetByParticipant возвращает агрегат очков участника
func (r *ScoreRepo) GetByParticipant(participantID, sessionID uint) (*entity.Score, error) {
	var score entity.Score
	err := r.db.Where("participant_id = ? AND session_id = ?", participantID, sessionID).
		First(&score).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &score, nil
}
