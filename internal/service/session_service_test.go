package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
)

func newSessionServiceFixture() (*SessionService, *MockSessionRepo, *MockParticipantRepo, *MockBroadcaster) {
	sessionRepo := new(MockSessionRepo)
	participantRepo := new(MockParticipantRepo)
	broadcaster := new(MockBroadcaster)
	svc := NewSessionService(sessionRepo, participantRepo, broadcaster)
	return svc, sessionRepo, participantRepo, broadcaster
}

func TestJoinByPin_Success(t *testing.T) {
	svc, sessionRepo, participantRepo, broadcaster := newSessionServiceFixture()

	session := &entity.Session{ID: 10, Pin: "123456", Status: entity.SessionStatusWaiting, GameMode: entity.GameModeClassic}
	sessionRepo.On("GetByPin", "123456").Return(session, nil)
	participantRepo.On("Create", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Participant).ID = 7
	}).Return(nil)
	broadcaster.On("BroadcastEventToSession", uint(10), sessionmanager.EventParticipantJoined, mock.Anything).Return(nil)

	participant, got, err := svc.JoinByPin("123456", "Маша", nil)

	require.NoError(t, err)
	assert.Equal(t, uint(10), got.ID)
	assert.Equal(t, "Маша", participant.Nickname)
	assert.Equal(t, uint(10), participant.SessionID)
	broadcaster.AssertExpectations(t)
}

func TestJoinByPin_InvalidNickname(t *testing.T) {
	svc, sessionRepo, _, _ := newSessionServiceFixture()

	_, _, err := svc.JoinByPin("123456", "Я", nil)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	sessionRepo.AssertNotCalled(t, "GetByPin", mock.Anything)
}

func TestJoinByPin_UnknownPin(t *testing.T) {
	svc, sessionRepo, _, _ := newSessionServiceFixture()

	sessionRepo.On("GetByPin", "999999").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.JoinByPin("999999", "Маша", nil)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestJoinByPin_SurvivalSetsLives(t *testing.T) {
	svc, sessionRepo, participantRepo, broadcaster := newSessionServiceFixture()

	session := &entity.Session{
		ID:         10,
		Pin:        "123456",
		GameMode:   entity.GameModeSurvival,
		ModeConfig: entity.ModeConfig{Lives: 3},
	}
	sessionRepo.On("GetByPin", "123456").Return(session, nil)
	participantRepo.On("Create", mock.Anything).Return(nil)
	broadcaster.On("BroadcastEventToSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	participant, _, err := svc.JoinByPin("123456", "Петя", nil)

	require.NoError(t, err)
	assert.Equal(t, 3, participant.LivesLeft)
}

func TestJoinByPin_TeamsAssignsRoundRobin(t *testing.T) {
	svc, sessionRepo, participantRepo, broadcaster := newSessionServiceFixture()

	session := &entity.Session{
		ID:         10,
		Pin:        "123456",
		GameMode:   entity.GameModeTeams,
		ModeConfig: entity.ModeConfig{TeamCount: 2},
	}
	sessionRepo.On("GetByPin", "123456").Return(session, nil)
	// Трое уже вошли: четвертый попадает во вторую команду
	participantRepo.On("CountBySessionID", uint(10)).Return(int64(3), nil)
	participantRepo.On("Create", mock.Anything).Return(nil)
	broadcaster.On("BroadcastEventToSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	participant, _, err := svc.JoinByPin("123456", "Гриша", nil)

	require.NoError(t, err)
	assert.Equal(t, "team-2", participant.Team)
}

func TestDelete_OnlyOwner(t *testing.T) {
	svc, sessionRepo, _, _ := newSessionServiceFixture()

	session := &entity.Session{ID: 10, HostID: 42, Status: entity.SessionStatusFinished}
	sessionRepo.On("GetByID", uint(10)).Return(session, nil)

	err := svc.Delete(10, 7)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	sessionRepo.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestDelete_OnlyFinished(t *testing.T) {
	svc, sessionRepo, _, _ := newSessionServiceFixture()

	session := &entity.Session{ID: 10, HostID: 42, Status: entity.SessionStatusActive}
	sessionRepo.On("GetByID", uint(10)).Return(session, nil)

	err := svc.Delete(10, 42)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDelete_Success(t *testing.T) {
	svc, sessionRepo, _, _ := newSessionServiceFixture()

	session := &entity.Session{ID: 10, HostID: 42, Status: entity.SessionStatusFinished}
	sessionRepo.On("GetByID", uint(10)).Return(session, nil)
	sessionRepo.On("Delete", uint(10)).Return(nil)

	err := svc.Delete(10, 42)

	require.NoError(t, err)
	sessionRepo.AssertExpectations(t)
}
