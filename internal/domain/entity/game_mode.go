package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Игровые режимы сессии
const (
	GameModeClassic  = "classic"
	GameModeSurvival = "survival"
	GameModeTeams    = "teams"
	GameModeHangman  = "hangman"
)

// Пределы конфигурации режимов
const (
	DefaultSurvivalLives = 3
	DefaultHangmanLives  = 6
	MaxLives             = 10
	MinTeamCount         = 2
	MaxTeamCount         = 8
)

// ModeConfig - типизированная конфигурация игрового режима.
// Валидируется один раз при создании сессии, а не протаскивается
// как нетипизированный key/value blob (см. DESIGN.md).
// Поля, не относящиеся к режиму сессии, игнорируются.
type ModeConfig struct {
	// Lives - стартовое количество жизней (survival, hangman)
	Lives int `json:"lives,omitempty"`

	// TeamCount - количество команд (teams)
	TeamCount int `json:"team_count,omitempty"`

	// IgnoreAccents включает сравнение без учета диакритики (hangman)
	IgnoreAccents bool `json:"ignore_accents,omitempty"`
}

// Scan реализует интерфейс sql.Scanner для ModeConfig (JSONB)
func (c *ModeConfig) Scan(value interface{}) error {
	if value == nil {
		*c = ModeConfig{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*c = ModeConfig{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// Value реализует интерфейс driver.Valuer для ModeConfig (JSONB)
func (c ModeConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// IsValidGameMode проверяет, что режим входит в известный набор
func IsValidGameMode(mode string) bool {
	switch mode {
	case GameModeClassic, GameModeSurvival, GameModeTeams, GameModeHangman:
		return true
	}
	return false
}

// DefaultModeConfig возвращает конфигурацию по умолчанию для режима
func DefaultModeConfig(mode string) ModeConfig {
	switch mode {
	case GameModeSurvival:
		return ModeConfig{Lives: DefaultSurvivalLives}
	case GameModeTeams:
		return ModeConfig{TeamCount: MinTeamCount}
	case GameModeHangman:
		return ModeConfig{Lives: DefaultHangmanLives, IgnoreAccents: true}
	default:
		return ModeConfig{}
	}
}

// Validate проверяет конфигурацию применительно к режиму.
// Вызывается при создании сессии; дальше конфигурация считается неизменной.
func (c ModeConfig) Validate(mode string) error {
	if !IsValidGameMode(mode) {
		return fmt.Errorf("unknown game mode %q", mode)
	}

	switch mode {
	case GameModeSurvival:
		if c.Lives < 1 || c.Lives > MaxLives {
			return fmt.Errorf("survival mode: lives must be in [1, %d], got %d", MaxLives, c.Lives)
		}
	case GameModeTeams:
		if c.TeamCount < MinTeamCount || c.TeamCount > MaxTeamCount {
			return fmt.Errorf("teams mode: team_count must be in [%d, %d], got %d", MinTeamCount, MaxTeamCount, c.TeamCount)
		}
	case GameModeHangman:
		if c.Lives < 1 || c.Lives > MaxLives {
			return fmt.Errorf("hangman mode: lives must be in [1, %d], got %d", MaxLives, c.Lives)
		}
	}
	return nil
}

// CompareOptionsFor возвращает опции сравнения ответов для режима.
// Hangman сравнивает без учета регистра и, опционально, диакритики.
func (c ModeConfig) CompareOptionsFor(mode string) CompareOptions {
	if mode == GameModeHangman {
		return CompareOptions{CaseInsensitive: true, IgnoreAccents: c.IgnoreAccents}
	}
	return CompareOptions{}
}
