package dto

import (
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/service"
)

// SessionResponse представляет сессию в формате для ответа клиенту
type SessionResponse struct {
	ID                uint              `json:"id"`
	Pin               string            `json:"pin"`
	QuizID            uint              `json:"quiz_id"`
	HostID            uint              `json:"host_id"`
	Status            string            `json:"status"`
	GameMode          string            `json:"game_mode"`
	ModeConfig        entity.ModeConfig `json:"mode_config"`
	Version           int               `json:"version"`
	CurrentQuestionID *uint             `json:"current_question_id,omitempty"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewSessionResponse создает DTO для сессии
func NewSessionResponse(s *entity.Session) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		ID:                s.ID,
		Pin:               s.Pin,
		QuizID:            s.QuizID,
		HostID:            s.HostID,
		Status:            s.Status,
		GameMode:          s.GameMode,
		ModeConfig:        s.ModeConfig,
		Version:           s.Version,
		CurrentQuestionID: s.CurrentQuestionID,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
		CreatedAt:         s.CreatedAt,
	}
}

// NewListSessionResponse создает слайс DTO для списка сессий
func NewListSessionResponse(sessions []entity.Session) []*SessionResponse {
	list := make([]*SessionResponse, len(sessions))
	for i, s := range sessions {
		list[i] = NewSessionResponse(&s)
	}
	return list
}

// ParticipantResponse представляет участника в формате для ответа клиенту
type ParticipantResponse struct {
	ID           uint      `json:"id"`
	SessionID    uint      `json:"session_id"`
	Nickname     string    `json:"nickname"`
	Team         string    `json:"team,omitempty"`
	LivesLeft    int       `json:"lives_left"`
	IsEliminated bool      `json:"is_eliminated"`
	JoinedAt     time.Time `json:"joined_at"`
}

// NewParticipantResponse создает DTO для участника
func NewParticipantResponse(p *entity.Participant) *ParticipantResponse {
	if p == nil {
		return nil
	}
	return &ParticipantResponse{
		ID:           p.ID,
		SessionID:    p.SessionID,
		Nickname:     p.Nickname,
		Team:         p.Team,
		LivesLeft:    p.LivesLeft,
		IsEliminated: p.IsEliminated,
		JoinedAt:     p.JoinedAt,
	}
}

// NewListParticipantResponse создает слайс DTO для списка участников
func NewListParticipantResponse(participants []entity.Participant) []*ParticipantResponse {
	list := make([]*ParticipantResponse, len(participants))
	for i, p := range participants {
		list[i] = NewParticipantResponse(&p)
	}
	return list
}

// JoinResponse - ответ на вход в сессию по PIN.
// WSTicket - короткоживущий тикет для подключения к WebSocket.
type JoinResponse struct {
	Participant *ParticipantResponse `json:"participant"`
	Session     *SessionResponse     `json:"session"`
	WSTicket    string               `json:"ws_ticket"`
}

// LeaderboardResponse - финальная таблица результатов сессии
type LeaderboardResponse struct {
	SessionID   uint                       `json:"session_id"`
	GameMode    string                     `json:"game_mode"`
	Leaderboard []service.LeaderboardEntry `json:"leaderboard"`
	Teams       []service.TeamStanding     `json:"teams,omitempty"`
}

// NewLeaderboardResponse создает DTO для таблицы результатов
func NewLeaderboardResponse(r *service.SessionResults) *LeaderboardResponse {
	if r == nil {
		return nil
	}
	return &LeaderboardResponse{
		SessionID:   r.SessionID,
		GameMode:    r.GameMode,
		Leaderboard: r.Leaderboard,
		Teams:       r.Teams,
	}
}
