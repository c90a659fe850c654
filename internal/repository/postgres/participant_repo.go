package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий участников
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// Create создает нового участника (каждая попытка входа - новая строка)
func (r *ParticipantRepo) Create(participant *entity.Participant) error {
	return r.db.Create(participant).Error
}

// GetByID возвращает участника по ID
func (r *ParticipantRepo) GetByID(id uint) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.First(&participant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// GetBySessionID возвращает всех участников сессии в порядке входа
func (r *ParticipantRepo) GetBySessionID(sessionID uint) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.Where("session_id = ?", sessionID).
		Order("joined_at, id").
		Find(&participants).Error
	return participants, err
}

// CountBySessionID возвращает количество участников сессии
func (r *ParticipantRepo) CountBySessionID(sessionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Participant{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}
