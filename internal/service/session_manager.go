package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
)

// SessionManager координирует живые сессии: хранит их рабочее состояние
// в памяти и делегирует переходы и прием ответов компонентам ядра.
// Одновременно может идти сколько угодно сессий.
type SessionManager struct {
	stateMachine    *sessionmanager.StateMachine
	answerProcessor *sessionmanager.AnswerProcessor

	sessionRepo     repository.SessionRepository
	quizRepo        repository.QuizRepository
	participantRepo repository.ParticipantRepository
	cacheRepo       repository.CacheRepository
	broadcaster     sessionmanager.Broadcaster

	config *sessionmanager.Config

	// Активные состояния по ID сессии
	states     map[uint]*sessionmanager.ActiveSessionState
	stateMutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager создает новый менеджер сессий
func NewSessionManager(
	sessionRepo repository.SessionRepository,
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	participantRepo repository.ParticipantRepository,
	answerRepo repository.AnswerRepository,
	scoreRepo repository.ScoreRepository,
	cacheRepo repository.CacheRepository,
	broadcaster sessionmanager.Broadcaster,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	config := sessionmanager.DefaultConfig()
	deps := &sessionmanager.Dependencies{
		SessionRepo:     sessionRepo,
		QuizRepo:        quizRepo,
		QuestionRepo:    questionRepo,
		ParticipantRepo: participantRepo,
		AnswerRepo:      answerRepo,
		ScoreRepo:       scoreRepo,
		CacheRepo:       cacheRepo,
		Broadcaster:     broadcaster,
	}

	sm := &SessionManager{
		stateMachine:    sessionmanager.NewStateMachine(config, deps),
		answerProcessor: sessionmanager.NewAnswerProcessor(config, deps),
		sessionRepo:     sessionRepo,
		quizRepo:        quizRepo,
		participantRepo: participantRepo,
		cacheRepo:       cacheRepo,
		broadcaster:     broadcaster,
		config:          config,
		states:          make(map[uint]*sessionmanager.ActiveSessionState),
		ctx:             ctx,
		cancel:          cancel,
	}

	log.Println("[SessionManager] Менеджер сессий инициализирован")
	return sm
}

// CreateSession создает сессию по викторине: проверяет режим, выделяет PIN
// и регистрирует рабочее состояние в памяти
func (sm *SessionManager) CreateSession(hostID, quizID uint, gameMode string, modeConfig *entity.ModeConfig) (*entity.Session, error) {
	if gameMode == "" {
		gameMode = entity.GameModeClassic
	}
	cfg := entity.DefaultModeConfig(gameMode)
	if modeConfig != nil {
		cfg = *modeConfig
	}
	if err := cfg.Validate(gameMode); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	quiz, err := sm.quizRepo.GetWithQuestions(quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz lookup: %w", err)
	}
	if quiz.OwnerID != hostID {
		return nil, apperrors.ErrForbidden
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", apperrors.ErrValidation)
	}

	session, err := sm.createWithUniquePin(quizID, hostID, gameMode, cfg)
	if err != nil {
		return nil, err
	}

	state := sessionmanager.NewActiveSessionState(session, quiz.Questions)
	sm.stateMutex.Lock()
	sm.states[session.ID] = state
	sm.stateMutex.Unlock()

	log.Printf("[SessionManager] Сессия %d создана: PIN=%s, режим=%s, вопросов=%d",
		session.ID, session.Pin, gameMode, len(quiz.Questions))
	return session, nil
}

// createWithUniquePin выделяет PIN и вставляет строку сессии.
// PIN резервируется в Redis через SetNX, чтобы два учителя не получили один
// код в один момент; последним словом остается partial unique index в БД.
func (sm *SessionManager) createWithUniquePin(quizID, hostID uint, gameMode string, cfg entity.ModeConfig) (*entity.Session, error) {
	for attempt := 0; attempt < sm.config.MaxPinAttempts; attempt++ {
		pin, err := generatePin()
		if err != nil {
			return nil, fmt.Errorf("pin generation: %w", err)
		}

		reservationKey := fmt.Sprintf("session:pin:%s", pin)
		reserved, err := sm.cacheRepo.SetNX(reservationKey, "1", sm.config.PinReservationTTL)
		if err != nil {
			log.Printf("[SessionManager] Redis недоступен при резервировании PIN: %v", err)
			// Продолжаем без резервирования, уникальный индекс подстрахует
		} else if !reserved {
			continue
		}

		session := &entity.Session{
			Pin:        pin,
			QuizID:     quizID,
			HostID:     hostID,
			Status:     entity.SessionStatusWaiting,
			GameMode:   gameMode,
			ModeConfig: cfg,
		}
		err = sm.sessionRepo.Create(session)
		if err == nil {
			return session, nil
		}
		if errors.Is(err, repository.ErrPinTaken) {
			log.Printf("[SessionManager] PIN %s занят, попытка %d", pin, attempt+1)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to allocate unique pin after %d attempts", sm.config.MaxPinAttempts)
}

// generatePin возвращает случайный 6-значный числовой PIN
func generatePin() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GetState возвращает рабочее состояние сессии, поднимая его из БД при
// необходимости (например, после рестарта процесса)
func (sm *SessionManager) GetState(sessionID uint) (*sessionmanager.ActiveSessionState, error) {
	sm.stateMutex.RLock()
	state, ok := sm.states[sessionID]
	sm.stateMutex.RUnlock()
	if ok {
		return state, nil
	}
	return sm.loadState(sessionID)
}

// loadState восстанавливает состояние сессии из БД
func (sm *SessionManager) loadState(sessionID uint) (*sessionmanager.ActiveSessionState, error) {
	session, err := sm.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	quiz, err := sm.quizRepo.GetWithQuestions(session.QuizID)
	if err != nil {
		return nil, err
	}

	state := sessionmanager.NewActiveSessionState(session, quiz.Questions)
	if session.CurrentQuestionID != nil && session.CurrentQuestionStartedAt != nil {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == *session.CurrentQuestionID {
				state.SetCurrentQuestion(i, session.CurrentQuestionStartedAt.UnixMilli())
				break
			}
		}
	}

	sm.stateMutex.Lock()
	// Другая горутина могла успеть первой
	if existing, ok := sm.states[sessionID]; ok {
		sm.stateMutex.Unlock()
		return existing, nil
	}
	sm.states[sessionID] = state
	sm.stateMutex.Unlock()

	log.Printf("[SessionManager] Состояние сессии %d восстановлено из БД (статус=%s)", sessionID, session.Status)
	return state, nil
}

// StartSession запускает сессию (только владелец)
func (sm *SessionManager) StartSession(sessionID, hostID uint, expectedVersion int) (*sessionmanager.StateSnapshot, error) {
	state, err := sm.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	return sm.stateMachine.Start(state, hostID, expectedVersion)
}

// AdvanceQuestion передвигает указатель текущего вопроса (только владелец).
// За последним вопросом следует завершение сессии.
func (sm *SessionManager) AdvanceQuestion(sessionID, hostID uint, expectedVersion int) (*sessionmanager.StateSnapshot, error) {
	state, err := sm.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := sm.stateMachine.Advance(state, hostID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if state.Session.IsFinished() {
		sm.dropState(sessionID)
	}
	return snapshot, nil
}

// FinishSession завершает сессию досрочно (только владелец)
func (sm *SessionManager) FinishSession(sessionID, hostID uint, expectedVersion int) (*sessionmanager.StateSnapshot, error) {
	state, err := sm.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := sm.stateMachine.FinishEarly(state, hostID, expectedVersion)
	if err != nil {
		return nil, err
	}
	sm.dropState(sessionID)
	return snapshot, nil
}

// SubmitAnswer обрабатывает ответ участника и отправляет ему персональный
// результат
func (sm *SessionManager) SubmitAnswer(sessionID, participantID, questionID uint, answerText string) (*sessionmanager.AnswerResult, error) {
	state, err := sm.GetState(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := sm.answerProcessor.ProcessAnswer(state, participantID, questionID, answerText)
	if err != nil {
		return nil, err
	}

	if sendErr := sm.broadcaster.SendEventToParticipant(participantID, sessionmanager.EventAnswerResult, result); sendErr != nil {
		log.Printf("[SessionManager] Не удалось отправить результат участнику %d: %v", participantID, sendErr)
	}
	return result, nil
}

// GetCurrentState возвращает полный снимок состояния сессии для
// ресинхронизации клиента после переподключения
func (sm *SessionManager) GetCurrentState(sessionID uint) (*sessionmanager.StateSnapshot, error) {
	state, err := sm.GetState(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionmanager.BuildStateSnapshot(state), nil
}

// dropState убирает завершенную сессию из памяти
func (sm *SessionManager) dropState(sessionID uint) {
	sm.stateMutex.Lock()
	delete(sm.states, sessionID)
	sm.stateMutex.Unlock()
}

// ActiveSessionCount возвращает число сессий, состояние которых держится в памяти
func (sm *SessionManager) ActiveSessionCount() int {
	sm.stateMutex.RLock()
	defer sm.stateMutex.RUnlock()
	return len(sm.states)
}

// Shutdown корректно завершает работу менеджера
func (sm *SessionManager) Shutdown() {
	log.Println("[SessionManager] Завершение работы менеджера сессий...")
	sm.cancel()
}
