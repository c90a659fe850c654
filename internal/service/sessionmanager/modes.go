package sessionmanager

import (
	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// ModeEffect - решение политики режима поверх результата оценки:
// новые жизни участника и факт выбывания
type ModeEffect struct {
	LivesLeft    int
	IsEliminated bool
}

// ApplyModePolicy применяет правила игрового режима к результату оценки.
// Базовый подсчет очков одинаков для всех режимов, политика меняет только
// жизни и выбывание. Чистая функция, участника не мутирует.
func ApplyModePolicy(mode string, participant *entity.Participant, result ScoringResult) ModeEffect {
	effect := ModeEffect{
		LivesLeft:    participant.LivesLeft,
		IsEliminated: participant.IsEliminated,
	}

	if mode != entity.GameModeSurvival {
		return effect
	}

	// Выживание: любой неверный ответ или опоздание снимает жизнь,
	// на нуле жизней участник выбывает
	if !result.IsCorrect {
		if effect.LivesLeft > 0 {
			effect.LivesLeft--
		}
		if effect.LivesLeft <= 0 {
			effect.IsEliminated = true
		}
	}

	return effect
}
