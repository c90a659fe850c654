package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// Назначения токенов
const (
	usageAccess   = "access"
	usageWSTicket = "ws_ticket"
)

// Claims содержит поля токена. Для учителя заполняется UserID, для
// участника сессии - ParticipantID и SessionID.
type Claims struct {
	UserID        uint   `json:"user_id,omitempty"`
	ParticipantID uint   `json:"participant_id,omitempty"`
	SessionID     uint   `json:"session_id,omitempty"`
	Role          string `json:"role"`
	Usage         string `json:"usage"`
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет токены доступа учителей и короткоживущие
// билеты для WebSocket-подключений. Билет выдается HTTP-слоем после
// аутентификации и живет секунды: его можно безопасно передать в query.
type JWTService struct {
	secretKey      []byte
	expiration     time.Duration
	wsTicketExpiry time.Duration
}

// NewJWTService создает сервис JWT
func NewJWTService(secretKey string, expirationHrs int, wsTicketExpirySec int) (*JWTService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	if wsTicketExpirySec <= 0 {
		wsTicketExpirySec = 60
	}
	return &JWTService{
		secretKey:      []byte(secretKey),
		expiration:     time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: time.Duration(wsTicketExpirySec) * time.Second,
	}, nil
}

// GenerateToken выпускает токен доступа учителя
func (s *JWTService) GenerateToken(userID uint, role string) (string, error) {
	return s.sign(&Claims{
		UserID: userID,
		Role:   role,
		Usage:  usageAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// GenerateHostWSTicket выпускает короткоживущий билет для WS-подключения учителя
func (s *JWTService) GenerateHostWSTicket(userID, sessionID uint) (string, error) {
	return s.sign(&Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      "host",
		Usage:     usageWSTicket,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.wsTicketExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// GenerateParticipantWSTicket выпускает билет для WS-подключения участника.
// Участники не имеют аккаунтов: билет - единственное, что связывает
// соединение со строкой участника.
func (s *JWTService) GenerateParticipantWSTicket(participantID, sessionID uint) (string, error) {
	return s.sign(&Claims{
		ParticipantID: participantID,
		SessionID:     sessionID,
		Role:          "player",
		Usage:         usageWSTicket,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.wsTicketExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

func (s *JWTService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет токен доступа учителя
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageAccess {
		return nil, fmt.Errorf("%w: not an access token", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

// ParseWSTicket проверяет билет WS-подключения
func (s *JWTService) ParseWSTicket(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageWSTicket {
		return nil, fmt.Errorf("%w: not a ws ticket", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}
