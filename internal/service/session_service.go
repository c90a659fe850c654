package service

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
)

// SessionService обслуживает вход участников и управление списком сессий.
// Живой игровой цикл (старт, вопросы, ответы) идет через SessionManager.
type SessionService struct {
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	broadcaster     sessionmanager.Broadcaster
}

// NewSessionService создает новый сервис сессий
func NewSessionService(
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	broadcaster sessionmanager.Broadcaster,
) *SessionService {
	return &SessionService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		broadcaster:     broadcaster,
	}
}

// JoinByPin подключает участника к сессии по PIN-коду.
// Вход разрешен и в зале ожидания, и по ходу игры (опоздавшие просто
// пропускают прошедшие вопросы). Каждый вход создает нового участника.
func (s *SessionService) JoinByPin(pin, nickname string, rosterEntryID *uint) (*entity.Participant, *entity.Session, error) {
	if err := entity.ValidateNickname(nickname); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	session, err := s.sessionRepo.GetByPin(pin)
	if err != nil {
		return nil, nil, err
	}

	participant := &entity.Participant{
		SessionID:     session.ID,
		Nickname:      nickname,
		RosterEntryID: rosterEntryID,
		JoinedAt:      time.Now().UTC(),
	}

	switch session.GameMode {
	case entity.GameModeSurvival, entity.GameModeHangman:
		participant.LivesLeft = session.ModeConfig.Lives
	case entity.GameModeTeams:
		team, err := s.assignTeam(session)
		if err != nil {
			return nil, nil, err
		}
		participant.Team = team
	}

	if err := s.participantRepo.Create(participant); err != nil {
		return nil, nil, fmt.Errorf("create participant: %w", err)
	}

	log.Printf("[SessionService] Участник %d (%s) вошел в сессию %d (PIN=%s)",
		participant.ID, nickname, session.ID, pin)

	event := map[string]interface{}{
		"session_id":     session.ID,
		"participant_id": participant.ID,
		"nickname":       participant.Nickname,
		"team":           participant.Team,
	}
	if err := s.broadcaster.BroadcastEventToSession(session.ID, sessionmanager.EventParticipantJoined, event); err != nil {
		log.Printf("[SessionService] Ошибка рассылки события входа: %v", err)
	}

	return participant, session, nil
}

// assignTeam распределяет нового участника в команду по кругу,
// выравнивая размеры команд
func (s *SessionService) assignTeam(session *entity.Session) (string, error) {
	count, err := s.participantRepo.CountBySessionID(session.ID)
	if err != nil {
		return "", fmt.Errorf("count participants: %w", err)
	}
	teamCount := session.ModeConfig.TeamCount
	if teamCount < entity.MinTeamCount {
		teamCount = entity.MinTeamCount
	}
	return fmt.Sprintf("team-%d", int(count)%teamCount+1), nil
}

// GetByID возвращает сессию по ID
func (s *SessionService) GetByID(sessionID uint) (*entity.Session, error) {
	return s.sessionRepo.GetByID(sessionID)
}

// GetByPin возвращает незавершенную сессию по PIN (предпросмотр перед входом)
func (s *SessionService) GetByPin(pin string) (*entity.Session, error) {
	return s.sessionRepo.GetByPin(pin)
}

// ListByHost возвращает сессии учителя с пагинацией
func (s *SessionService) ListByHost(hostID uint, limit, offset int) ([]entity.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessionRepo.ListByHost(hostID, limit, offset)
}

// GetParticipants возвращает участников сессии
func (s *SessionService) GetParticipants(sessionID uint) ([]entity.Participant, error) {
	return s.participantRepo.GetBySessionID(sessionID)
}

// HasUnfinishedByQuiz сообщает, идет ли сейчас хоть одна сессия по викторине.
// Редактор контента блокирует правки, пока это так.
func (s *SessionService) HasUnfinishedByQuiz(quizID uint) (bool, error) {
	return s.sessionRepo.HasUnfinishedByQuiz(quizID)
}

// Delete удаляет завершенную сессию вместе с историей (только владелец)
func (s *SessionService) Delete(sessionID, hostID uint) error {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session.HostID != hostID {
		return apperrors.ErrForbidden
	}
	if !session.IsFinished() {
		return fmt.Errorf("%w: only finished sessions can be deleted", apperrors.ErrValidation)
	}
	return s.sessionRepo.Delete(sessionID)
}
