package service

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
)

// Моки репозиториев для юнит-тестов сервисов

type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(session *entity.Session) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionRepo) GetByID(id uint) (*entity.Session, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockSessionRepo) GetByPin(pin string) (*entity.Session, error) {
	args := m.Called(pin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockSessionRepo) StartSession(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error {
	args := m.Called(sessionID, expectedVersion, questionID, startedAt)
	return args.Error(0)
}

func (m *MockSessionRepo) AdvanceQuestion(sessionID uint, expectedVersion int, questionID uint, startedAt time.Time) error {
	args := m.Called(sessionID, expectedVersion, questionID, startedAt)
	return args.Error(0)
}

func (m *MockSessionRepo) FinishSession(sessionID uint, expectedVersion int, finishedAt time.Time) error {
	args := m.Called(sessionID, expectedVersion, finishedAt)
	return args.Error(0)
}

func (m *MockSessionRepo) ListByHost(hostID uint, limit, offset int) ([]entity.Session, error) {
	args := m.Called(hostID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Session), args.Error(1)
}

func (m *MockSessionRepo) HasUnfinishedByQuiz(quizID uint) (bool, error) {
	args := m.Called(quizID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepo) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockParticipantRepo struct {
	mock.Mock
}

func (m *MockParticipantRepo) Create(participant *entity.Participant) error {
	args := m.Called(participant)
	return args.Error(0)
}

func (m *MockParticipantRepo) GetByID(id uint) (*entity.Participant, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Participant), args.Error(1)
}

func (m *MockParticipantRepo) GetBySessionID(sessionID uint) ([]entity.Participant, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockParticipantRepo) CountBySessionID(sessionID uint) (int64, error) {
	args := m.Called(sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockAnswerRepo struct {
	mock.Mock
}

func (m *MockAnswerRepo) RecordScored(answer *entity.Answer, upd repository.StreakUpdate) error {
	args := m.Called(answer, upd)
	return args.Error(0)
}

func (m *MockAnswerRepo) GetByParticipantAndQuestion(participantID, questionID uint) (*entity.Answer, error) {
	args := m.Called(participantID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Answer), args.Error(1)
}

func (m *MockAnswerRepo) GetBySession(sessionID uint) ([]entity.Answer, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Answer), args.Error(1)
}

func (m *MockAnswerRepo) GetByParticipant(sessionID, participantID uint) ([]entity.Answer, error) {
	args := m.Called(sessionID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Answer), args.Error(1)
}

func (m *MockAnswerRepo) CountByQuestion(sessionID, questionID uint) (int64, error) {
	args := m.Called(sessionID, questionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockScoreRepo struct {
	mock.Mock
}

func (m *MockScoreRepo) GetBySession(sessionID uint) ([]entity.Score, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Score), args.Error(1)
}

func (m *MockScoreRepo) GetByParticipant(participantID, sessionID uint) (*entity.Score, error) {
	args := m.Called(participantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Score), args.Error(1)
}

type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetByQuizIDOrdered(quizID uint) ([]entity.Question, error) {
	args := m.Called(quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) CountByQuizID(quizID uint) (int64, error) {
	args := m.Called(quizID)
	return args.Get(0).(int64), args.Error(1)
}

type MockQuizRepo struct {
	mock.Mock
}

func (m *MockQuizRepo) GetByID(id uint) (*entity.Quiz, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepo) GetWithQuestions(id uint) (*entity.Quiz, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheRepo) Expire(key string, expiration time.Duration) error {
	args := m.Called(key, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepo) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastEventToSession(sessionID uint, eventType string, data interface{}) error {
	args := m.Called(sessionID, eventType, data)
	return args.Error(0)
}

func (m *MockBroadcaster) SendEventToParticipant(participantID uint, eventType string, data interface{}) error {
	args := m.Called(participantID, eventType, data)
	return args.Error(0)
}
