package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create сохраняет новую сессию.
// Partial unique index idx_sessions_pin_unfinished гарантирует уникальность PIN
// среди незавершенных сессий; 23505 транслируется в ErrPinTaken для ретрая генератора.
func (r *SessionRepo) Create(session *entity.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: pin %s", repository.ErrPinTaken, session.Pin)
		}
		return err
	}
	return nil
}

// GetByID возвращает сессию по ID
func (r *SessionRepo) GetByID(id uint) (*entity.Session, error) {
	var session entity.Session
	err := r.db.First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByPin возвращает незавершенную сессию с данным PIN.
// Завершенные сессии не учитываются: их PIN уже мог быть переиспользован.
func (r *SessionRepo) GetByPin(pin string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.Where("pin = ? AND status <> ?", pin, entity.SessionStatusFinished).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// StartSession атомарно переводит waiting → active.
// Один UPDATE с проверкой статуса И версии:
// - RowsAffected == 0 при несовпавшей версии → ErrVersionConflict
// - RowsAffected == 0 при неверном статусе → ErrSessionNotWaiting
// - Другая DB ошибка → возвращается как есть
func (r *SessionRepo) StartSession(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status = ? AND version = ?", sessionID, entity.SessionStatusWaiting, expectedVersion).
		Updates(map[string]interface{}{
			"status":                      entity.SessionStatusActive,
			"current_question_id":         questionID,
			"current_question_started_at": startedAt,
			"started_at":                  startedAt,
			"version":                     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("start session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyRejectedTransition(sessionID, entity.SessionStatusWaiting)
	}
	return nil
}

// AdvanceQuestion атомарно переставляет указатель текущего вопроса.
// Серверная отметка startedAt - единственный способ сброса отсчета.
func (r *SessionRepo) AdvanceQuestion(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status = ? AND version = ?", sessionID, entity.SessionStatusActive, expectedVersion).
		Updates(map[string]interface{}{
			"current_question_id":         questionID,
			"current_question_started_at": startedAt,
			"version":                     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("advance session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyRejectedTransition(sessionID, entity.SessionStatusActive)
	}
	return nil
}

// FinishSession атомарно переводит сессию в finished (из waiting или active),
// очищая указатель текущего вопроса - инвариант "указатель не nil iff active".
func (r *SessionRepo) FinishSession(sessionID uint, expectedVersion int, finishedAt time.Time) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status <> ? AND version = ?", sessionID, entity.SessionStatusFinished, expectedVersion).
		Updates(map[string]interface{}{
			"status":                      entity.SessionStatusFinished,
			"current_question_id":         nil,
			"current_question_started_at": nil,
			"finished_at":                 finishedAt,
			"version":                     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("finish session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Для finish "неверный статус" означает, что сессия уже завершена
		return r.classifyRejectedTransition(sessionID, "")
	}
	return nil
}

// classifyRejectedTransition различает причины RowsAffected == 0:
// сессии нет, статус не тот или версия устарела.
func (r *SessionRepo) classifyRejectedTransition(sessionID uint, wantStatus string) error {
	session, err := r.GetByID(sessionID)
	if err != nil {
		return err
	}
	if wantStatus != "" && session.Status != wantStatus {
		switch wantStatus {
		case entity.SessionStatusWaiting:
			return fmt.Errorf("%w: session #%d is %s", repository.ErrSessionNotWaiting, sessionID, session.Status)
		default:
			return fmt.Errorf("%w: session #%d is %s", repository.ErrSessionNotActive, sessionID, session.Status)
		}
	}
	if wantStatus == "" && session.IsFinished() {
		return fmt.Errorf("%w: session #%d is already finished", repository.ErrSessionNotActive, sessionID)
	}
	return fmt.Errorf("%w: session #%d", repository.ErrVersionConflict, sessionID)
}

// ListByHost возвращает сессии учителя с пагинацией
func (r *SessionRepo) ListByHost(hostID uint, limit, offset int) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.Where("host_id = ?", hostID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error
	return sessions, err
}

// HasUnfinishedByQuiz сообщает, есть ли незавершенные сессии по викторине
func (r *SessionRepo) HasUnfinishedByQuiz(quizID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entity.Session{}).
		Where("quiz_id = ? AND status <> ?", quizID, entity.SessionStatusFinished).
		Count(&count).Error
	return count > 0, err
}

// Delete удаляет сессию вместе со всем деревом записей.
// Порядок внутри транзакции: ответы → очки → участники → сессия.
func (r *SessionRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&entity.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.Score{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.Participant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Session{}, id).Error
	})
}
