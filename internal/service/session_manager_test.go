package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

type managerFixture struct {
	manager         *SessionManager
	sessionRepo     *MockSessionRepo
	quizRepo        *MockQuizRepo
	questionRepo    *MockQuestionRepo
	participantRepo *MockParticipantRepo
	answerRepo      *MockAnswerRepo
	scoreRepo       *MockScoreRepo
	cacheRepo       *MockCacheRepo
	broadcaster     *MockBroadcaster
}

func newManagerFixture() *managerFixture {
	f := &managerFixture{
		sessionRepo:     new(MockSessionRepo),
		quizRepo:        new(MockQuizRepo),
		questionRepo:    new(MockQuestionRepo),
		participantRepo: new(MockParticipantRepo),
		answerRepo:      new(MockAnswerRepo),
		scoreRepo:       new(MockScoreRepo),
		cacheRepo:       new(MockCacheRepo),
		broadcaster:     new(MockBroadcaster),
	}
	f.manager = NewSessionManager(
		f.sessionRepo, f.quizRepo, f.questionRepo, f.participantRepo,
		f.answerRepo, f.scoreRepo, f.cacheRepo, f.broadcaster,
	)
	return f
}

func testQuiz() *entity.Quiz {
	return &entity.Quiz{
		ID:      5,
		OwnerID: 42,
		Title:   "Дроби",
		Questions: []entity.Question{
			{ID: 100, Text: "Q1", TimeLimitSec: 20, Points: 1000},
			{ID: 101, Text: "Q2", TimeLimitSec: 20, Points: 1000},
		},
	}
}

func TestCreateSession_Success(t *testing.T) {
	f := newManagerFixture()

	f.quizRepo.On("GetWithQuestions", uint(5)).Return(testQuiz(), nil)
	f.cacheRepo.On("SetNX", mock.Anything, "1", mock.Anything).Return(true, nil)
	f.sessionRepo.On("Create", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Session).ID = 10
	}).Return(nil)

	session, err := f.manager.CreateSession(42, 5, entity.GameModeClassic, nil)

	require.NoError(t, err)
	assert.Equal(t, uint(10), session.ID)
	assert.Len(t, session.Pin, entity.PinLength)
	assert.Equal(t, entity.SessionStatusWaiting, session.Status)
	assert.Equal(t, 1, f.manager.ActiveSessionCount())
}

func TestCreateSession_RejectsForeignQuiz(t *testing.T) {
	f := newManagerFixture()

	f.quizRepo.On("GetWithQuestions", uint(5)).Return(testQuiz(), nil)

	_, err := f.manager.CreateSession(7, 5, entity.GameModeClassic, nil)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	f.sessionRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestCreateSession_RejectsInvalidModeConfig(t *testing.T) {
	f := newManagerFixture()

	cfg := &entity.ModeConfig{Lives: 99}
	_, err := f.manager.CreateSession(42, 5, entity.GameModeSurvival, cfg)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateSession_RetriesOnPinCollision(t *testing.T) {
	f := newManagerFixture()

	f.quizRepo.On("GetWithQuestions", uint(5)).Return(testQuiz(), nil)
	f.cacheRepo.On("SetNX", mock.Anything, "1", mock.Anything).Return(true, nil)
	// Первая вставка натыкается на занятый PIN, вторая проходит
	f.sessionRepo.On("Create", mock.Anything).Return(repository.ErrPinTaken).Once()
	f.sessionRepo.On("Create", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Session).ID = 11
	}).Return(nil).Once()

	session, err := f.manager.CreateSession(42, 5, entity.GameModeClassic, nil)

	require.NoError(t, err)
	assert.Equal(t, uint(11), session.ID)
	f.sessionRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestGetState_RestoresFromDatabase(t *testing.T) {
	f := newManagerFixture()

	questionID := uint(101)
	ts := time.Now().UTC().Truncate(time.Millisecond)
	session := &entity.Session{
		ID:                       10,
		QuizID:                   5,
		HostID:                   42,
		Status:                   entity.SessionStatusActive,
		CurrentQuestionID:        &questionID,
		CurrentQuestionStartedAt: &ts,
		Version:                  2,
	}

	f.sessionRepo.On("GetByID", uint(10)).Return(session, nil)
	f.quizRepo.On("GetWithQuestions", uint(5)).Return(testQuiz(), nil)

	state, err := f.manager.GetState(10)

	require.NoError(t, err)
	question, number := state.CurrentQuestion()
	require.NotNil(t, question)
	assert.Equal(t, uint(101), question.ID)
	assert.Equal(t, 2, number)
	assert.Equal(t, ts.UnixMilli(), state.StartTimeMs())
}

func TestGetCurrentState_SnapshotForResync(t *testing.T) {
	f := newManagerFixture()

	session := &entity.Session{ID: 10, QuizID: 5, HostID: 42, Status: entity.SessionStatusWaiting, Version: 0}
	f.sessionRepo.On("GetByID", uint(10)).Return(session, nil)
	f.quizRepo.On("GetWithQuestions", uint(5)).Return(testQuiz(), nil)

	snapshot, err := f.manager.GetCurrentState(10)

	require.NoError(t, err)
	assert.Equal(t, "waiting", snapshot.Status)
	assert.Equal(t, 2, snapshot.TotalQuestions)
	assert.Nil(t, snapshot.Question)
	assert.NotZero(t, snapshot.ServerTimeMs)
}
