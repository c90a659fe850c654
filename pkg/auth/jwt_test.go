package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

func newTestService(t *testing.T) *JWTService {
	svc, err := NewJWTService("test-secret-key", 1, 60)
	require.NoError(t, err)
	return svc
}

func TestJWTService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(42, "teacher")
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
}

func TestJWTService_ParticipantTicket(t *testing.T) {
	svc := newTestService(t)

	ticket, err := svc.GenerateParticipantWSTicket(7, 10)
	require.NoError(t, err)

	claims, err := svc.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.ParticipantID)
	assert.Equal(t, uint(10), claims.SessionID)
	assert.Equal(t, "player", claims.Role)
}

func TestJWTService_AccessTokenIsNotWSTicket(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(42, "teacher")
	require.NoError(t, err)

	// Токен доступа нельзя использовать как билет подключения
	_, err = svc.ParseWSTicket(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	svc := newTestService(t)
	other, err := NewJWTService("other-secret", 1, 60)
	require.NoError(t, err)

	token, err := other.GenerateToken(42, "teacher")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", 1, 60)
	assert.Error(t, err)
}
