package sessionmanager

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// StateMachine управляет жизненным циклом сессии: waiting → active → finished.
// Все переходы идут через версионированные UPDATE в БД, поэтому два
// конкурирующих перехода не могут примениться оба: проигравший получает
// ErrVersionConflict и перечитывает состояние.
type StateMachine struct {
	config *Config
	deps   *Dependencies
}

// NewStateMachine создает машину переходов сессии
func NewStateMachine(config *Config, deps *Dependencies) *StateMachine {
	return &StateMachine{
		config: config,
		deps:   deps,
	}
}

// Start переводит сессию из waiting в active и открывает первый вопрос.
// Разрешено только владельцу сессии. expectedVersion - версия, которую
// вызывающий видел последней.
func (sm *StateMachine) Start(state *ActiveSessionState, hostID uint, expectedVersion int) (*StateSnapshot, error) {
	session := state.Session
	if session.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}
	if len(state.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", apperrors.ErrValidation)
	}

	firstQuestion := state.Questions[0]
	now := time.Now().UTC()
	if err := sm.deps.SessionRepo.StartSession(session.ID, expectedVersion, firstQuestion.ID, now); err != nil {
		return nil, err
	}

	state.Mu.Lock()
	session.Status = entity.SessionStatusActive
	session.CurrentQuestionID = &firstQuestion.ID
	session.CurrentQuestionStartedAt = &now
	session.StartedAt = &now
	session.Version = expectedVersion + 1
	state.currentIndex = 0
	state.startTimeMs = now.UnixMilli()
	state.Mu.Unlock()

	log.Printf("[StateMachine] Сессия %d запущена, вопрос 1/%d (id=%d)",
		session.ID, len(state.Questions), firstQuestion.ID)

	sm.resetAnswerCounter(session.ID)
	return sm.broadcastState(state), nil
}

// Advance переставляет указатель на следующий вопрос. Если текущий вопрос
// последний, сессия завершается. Таймер вопроса сбрасывается только здесь:
// пока учитель не нажал "дальше", вопрос остается открытым сколько угодно.
func (sm *StateMachine) Advance(state *ActiveSessionState, hostID uint, expectedVersion int) (*StateSnapshot, error) {
	session := state.Session
	if session.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}

	nextIndex := state.CurrentIndex() + 1
	if nextIndex >= len(state.Questions) {
		return sm.finish(state, expectedVersion)
	}

	nextQuestion := state.Questions[nextIndex]
	now := time.Now().UTC()
	if err := sm.deps.SessionRepo.AdvanceQuestion(session.ID, expectedVersion, nextQuestion.ID, now); err != nil {
		return nil, err
	}

	// Версия и указатель вопроса меняются в одной критической секции:
	// снимок, взятый под RLock, всегда видит их согласованными
	state.Mu.Lock()
	session.CurrentQuestionID = &nextQuestion.ID
	session.CurrentQuestionStartedAt = &now
	session.Version = expectedVersion + 1
	state.currentIndex = nextIndex
	state.startTimeMs = now.UnixMilli()
	state.Mu.Unlock()

	log.Printf("[StateMachine] Сессия %d: вопрос %d/%d (id=%d)",
		session.ID, nextIndex+1, len(state.Questions), nextQuestion.ID)

	sm.resetAnswerCounter(session.ID)
	return sm.broadcastState(state), nil
}

// FinishEarly завершает сессию до исчерпания вопросов (только владелец)
func (sm *StateMachine) FinishEarly(state *ActiveSessionState, hostID uint, expectedVersion int) (*StateSnapshot, error) {
	if state.Session.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}
	return sm.finish(state, expectedVersion)
}

func (sm *StateMachine) finish(state *ActiveSessionState, expectedVersion int) (*StateSnapshot, error) {
	session := state.Session
	now := time.Now().UTC()
	if err := sm.deps.SessionRepo.FinishSession(session.ID, expectedVersion, now); err != nil {
		return nil, err
	}

	state.Mu.Lock()
	session.Status = entity.SessionStatusFinished
	session.CurrentQuestionID = nil
	session.CurrentQuestionStartedAt = nil
	session.FinishedAt = &now
	session.Version = expectedVersion + 1
	state.currentIndex = -1
	state.startTimeMs = 0
	state.Mu.Unlock()

	log.Printf("[StateMachine] Сессия %d завершена", session.ID)

	snapshot := sm.broadcastState(state)
	sm.broadcastScores(state)
	return snapshot, nil
}

// broadcastState рассылает полный снимок состояния всем клиентам сессии.
// Доставка best-effort: даже потеряв событие, клиент догонит состояние
// по следующему снимку или через ресинхронизацию.
func (sm *StateMachine) broadcastState(state *ActiveSessionState) *StateSnapshot {
	snapshot := BuildStateSnapshot(state)
	if err := sm.deps.Broadcaster.BroadcastEventToSession(state.Session.ID, EventSessionState, snapshot); err != nil {
		log.Printf("[StateMachine] Ошибка рассылки состояния сессии %d: %v", state.Session.ID, err)
	}
	return snapshot
}

// broadcastScores рассылает итоговую таблицу очков при завершении сессии
func (sm *StateMachine) broadcastScores(state *ActiveSessionState) {
	snapshot, err := BuildScoresSnapshot(sm.deps, state.Session.ID)
	if err != nil {
		log.Printf("[StateMachine] Ошибка сборки таблицы очков сессии %d: %v", state.Session.ID, err)
		return
	}
	if err := sm.deps.Broadcaster.BroadcastEventToSession(state.Session.ID, EventSessionScores, snapshot); err != nil {
		log.Printf("[StateMachine] Ошибка рассылки очков сессии %d: %v", state.Session.ID, err)
	}
}

// resetAnswerCounter сбрасывает счетчик ответов в Redis при смене вопроса
func (sm *StateMachine) resetAnswerCounter(sessionID uint) {
	key := answerCounterKey(sessionID)
	if err := sm.deps.CacheRepo.Delete(key); err != nil {
		log.Printf("[StateMachine] Не удалось сбросить счетчик ответов сессии %d: %v", sessionID, err)
	}
}
