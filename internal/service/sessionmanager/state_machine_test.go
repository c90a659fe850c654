package sessionmanager

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

func newStateMachineFixture() (*StateMachine, *MockSessionRepo, *MockParticipantRepo, *MockScoreRepo, *MockCacheRepo, *MockBroadcaster) {
	sessionRepo := new(MockSessionRepo)
	participantRepo := new(MockParticipantRepo)
	scoreRepo := new(MockScoreRepo)
	cacheRepo := new(MockCacheRepo)
	broadcaster := new(MockBroadcaster)

	sm := NewStateMachine(DefaultConfig(), &Dependencies{
		SessionRepo:     sessionRepo,
		ParticipantRepo: participantRepo,
		ScoreRepo:       scoreRepo,
		CacheRepo:       cacheRepo,
		Broadcaster:     broadcaster,
	})
	return sm, sessionRepo, participantRepo, scoreRepo, cacheRepo, broadcaster
}

func newWaitingState() *ActiveSessionState {
	session := &entity.Session{
		ID:       10,
		Pin:      "123456",
		QuizID:   1,
		HostID:   42,
		Status:   entity.SessionStatusWaiting,
		GameMode: entity.GameModeClassic,
		Version:  0,
	}
	questions := []entity.Question{
		{ID: 100, Text: "Q1", Type: entity.QuestionTypeTrueFalse, CorrectAnswer: "true", TimeLimitSec: 20, Points: 1000},
		{ID: 101, Text: "Q2", Type: entity.QuestionTypeTrueFalse, CorrectAnswer: "false", TimeLimitSec: 20, Points: 1000},
	}
	return NewActiveSessionState(session, questions)
}

func TestStateMachine_Start(t *testing.T) {
	sm, sessionRepo, _, _, cacheRepo, broadcaster := newStateMachineFixture()
	state := newWaitingState()

	sessionRepo.On("StartSession", uint(10), 0, uint(100), mock.Anything).Return(nil)
	cacheRepo.On("Delete", "session:10:answer_count").Return(nil)
	broadcaster.On("BroadcastEventToSession", uint(10), EventSessionState, mock.Anything).Return(nil)

	snapshot, err := sm.Start(state, 42, 0)

	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, state.Session.Status)
	assert.Equal(t, 1, state.Session.Version)
	require.NotNil(t, state.Session.CurrentQuestionID)
	assert.Equal(t, uint(100), *state.Session.CurrentQuestionID)
	assert.NotZero(t, state.StartTimeMs())

	require.NotNil(t, snapshot)
	assert.Equal(t, 1, snapshot.QuestionNumber)
	assert.Equal(t, 2, snapshot.TotalQuestions)
	require.NotNil(t, snapshot.Question)
	// Правильный ответ никогда не уходит в снимок
	assert.Equal(t, uint(100), snapshot.Question.ID)

	sessionRepo.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestStateMachine_StartRejectsNonOwner(t *testing.T) {
	sm, sessionRepo, _, _, _, _ := newStateMachineFixture()
	state := newWaitingState()

	_, err := sm.Start(state, 99, 0)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	sessionRepo.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStateMachine_StartPropagatesVersionConflict(t *testing.T) {
	sm, sessionRepo, _, _, _, _ := newStateMachineFixture()
	state := newWaitingState()

	sessionRepo.On("StartSession", uint(10), 0, uint(100), mock.Anything).Return(repository.ErrVersionConflict)

	_, err := sm.Start(state, 42, 0)

	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	// Проигравший переход не трогает состояние в памяти
	assert.Equal(t, entity.SessionStatusWaiting, state.Session.Status)
	assert.Equal(t, 0, state.Session.Version)
}

func TestStateMachine_AdvanceMovesToNextQuestion(t *testing.T) {
	sm, sessionRepo, _, _, cacheRepo, broadcaster := newStateMachineFixture()
	state := newWaitingState()
	state.Session.Status = entity.SessionStatusActive
	state.Session.Version = 1
	state.SetCurrentQuestion(0, 1000)

	sessionRepo.On("AdvanceQuestion", uint(10), 1, uint(101), mock.Anything).Return(nil)
	cacheRepo.On("Delete", "session:10:answer_count").Return(nil)
	broadcaster.On("BroadcastEventToSession", uint(10), EventSessionState, mock.Anything).Return(nil)

	snapshot, err := sm.Advance(state, 42, 1)

	require.NoError(t, err)
	assert.Equal(t, 2, state.Session.Version)
	assert.Equal(t, uint(101), *state.Session.CurrentQuestionID)
	assert.Equal(t, 2, snapshot.QuestionNumber)
	sessionRepo.AssertExpectations(t)
}

func TestStateMachine_AdvancePastLastQuestionFinishes(t *testing.T) {
	sm, sessionRepo, participantRepo, scoreRepo, _, broadcaster := newStateMachineFixture()
	state := newWaitingState()
	state.Session.Status = entity.SessionStatusActive
	state.Session.Version = 2
	state.SetCurrentQuestion(1, 1000)

	sessionRepo.On("FinishSession", uint(10), 2, mock.Anything).Return(nil)
	participantRepo.On("GetBySessionID", uint(10)).Return([]entity.Participant{}, nil)
	scoreRepo.On("GetBySession", uint(10)).Return([]entity.Score{}, nil)
	broadcaster.On("BroadcastEventToSession", uint(10), EventSessionState, mock.Anything).Return(nil)
	broadcaster.On("BroadcastEventToSession", uint(10), EventSessionScores, mock.Anything).Return(nil)

	snapshot, err := sm.Advance(state, 42, 2)

	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFinished, state.Session.Status)
	assert.Nil(t, state.Session.CurrentQuestionID)
	assert.Equal(t, 3, state.Session.Version)
	assert.Nil(t, snapshot.Question)
	assert.NotNil(t, state.Session.FinishedAt)
	sessionRepo.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestStateMachine_FinishEarly(t *testing.T) {
	sm, sessionRepo, participantRepo, scoreRepo, _, broadcaster := newStateMachineFixture()
	state := newWaitingState()
	state.Session.Status = entity.SessionStatusActive
	state.Session.Version = 1
	state.SetCurrentQuestion(0, 1000)

	sessionRepo.On("FinishSession", uint(10), 1, mock.Anything).Return(nil)
	participantRepo.On("GetBySessionID", uint(10)).Return([]entity.Participant{}, nil)
	scoreRepo.On("GetBySession", uint(10)).Return([]entity.Score{}, nil)
	broadcaster.On("BroadcastEventToSession", uint(10), mock.Anything, mock.Anything).Return(nil)

	_, err := sm.FinishEarly(state, 42, 1)

	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFinished, state.Session.Status)
	assert.Equal(t, -1, state.CurrentIndex())
}

func TestStateMachine_SnapshotConsistentDuringTransitions(t *testing.T) {
	sm, sessionRepo, participantRepo, scoreRepo, cacheRepo, broadcaster := newStateMachineFixture()

	session := &entity.Session{
		ID:       10,
		HostID:   42,
		Status:   entity.SessionStatusWaiting,
		GameMode: entity.GameModeClassic,
	}
	questions := make([]entity.Question, 25)
	for i := range questions {
		questions[i] = entity.Question{ID: uint(100 + i), Type: entity.QuestionTypeTrueFalse, CorrectAnswer: "true", TimeLimitSec: 20, Points: 1000}
	}
	state := NewActiveSessionState(session, questions)

	sessionRepo.On("StartSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sessionRepo.On("AdvanceQuestion", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sessionRepo.On("FinishSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cacheRepo.On("Delete", mock.Anything).Return(nil)
	participantRepo.On("GetBySessionID", uint(10)).Return([]entity.Participant{}, nil)
	scoreRepo.On("GetBySession", uint(10)).Return([]entity.Score{}, nil)
	broadcaster.On("BroadcastEventToSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Ресинхронизация снимает снимки параллельно с переходами ведущего.
	// Пока у нас один Start и дальше только Advance, у активной сессии
	// номер вопроса совпадает с версией; расхождение значит рваный снимок.
	done := make(chan struct{})
	var torn atomic.Int32
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			snapshot := BuildStateSnapshot(state)
			if snapshot.Status == entity.SessionStatusActive &&
				(snapshot.Question == nil || snapshot.QuestionNumber != snapshot.Version) {
				torn.Add(1)
			}
		}
	}()

	_, err := sm.Start(state, 42, 0)
	require.NoError(t, err)
	for v := 1; v <= len(questions); v++ {
		_, err := sm.Advance(state, 42, v)
		require.NoError(t, err)
	}
	close(done)

	assert.Equal(t, entity.SessionStatusFinished, state.Session.Status)
	assert.Zero(t, torn.Load())
}

func TestStateMachine_FinishEarlyRejectsNonOwner(t *testing.T) {
	sm, sessionRepo, _, _, _, _ := newStateMachineFixture()
	state := newWaitingState()

	_, err := sm.FinishEarly(state, 7, 0)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	sessionRepo.AssertNotCalled(t, "FinishSession", mock.Anything, mock.Anything, mock.Anything)
}
