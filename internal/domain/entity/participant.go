package entity

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Ограничения на никнейм участника
const (
	NicknameMinLen = 2
	NicknameMaxLen = 20
)

// Participant представляет участие одного ученика в одной сессии.
// Каждая попытка входа создает новую строку; повторный вход по сохраненному
// идентификатору - клиентское удобство, сервер уникальность не навязывает.
type Participant struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID uint   `gorm:"not null;index" json:"session_id"`
	Nickname  string `gorm:"size:20;not null" json:"nickname"`

	// RosterEntryID - необязательная ссылка на запись в классном журнале
	RosterEntryID *uint `json:"roster_entry_id,omitempty"`

	CurrentStreak int `gorm:"not null;default:0" json:"current_streak"`
	MaxStreak     int `gorm:"not null;default:0" json:"max_streak"`

	// LivesLeft используется режимами survival и hangman
	LivesLeft    int    `gorm:"not null;default:0" json:"lives_left"`
	IsEliminated bool   `gorm:"not null;default:false" json:"is_eliminated"`
	Team         string `gorm:"size:50;not null;default:''" json:"team,omitempty"`

	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "participants"
}

// ValidateNickname проверяет длину никнейма (2-20 символов)
func ValidateNickname(nickname string) error {
	n := utf8.RuneCountInString(nickname)
	if n < NicknameMinLen || n > NicknameMaxLen {
		return fmt.Errorf("nickname must be %d-%d characters, got %d", NicknameMinLen, NicknameMaxLen, n)
	}
	return nil
}
