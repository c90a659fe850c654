package sessionmanager

import (
	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// ScoringResult - итог оценки одного ответа
type ScoringResult struct {
	IsCorrect     bool
	TimedOut      bool
	PointsAwarded int
	NewStreak     int
}

// ScoreAnswer оценивает один ответ. Чистая функция: никакого I/O, никакого
// чтения часов, при одинаковых входах всегда одинаковый результат.
// elapsedMs считается сервером от штампа старта вопроса, клиентским часам
// здесь не доверяем.
func ScoreAnswer(question *entity.Question, submitted string, elapsedMs int64, priorStreak int, mode string, cfg entity.ModeConfig) ScoringResult {
	limitMs := int64(question.TimeLimitSec) * 1000
	if limitMs > 0 && elapsedMs > limitMs {
		// Опоздание: ноль очков и сброс серии, как и за неверный ответ
		return ScoringResult{TimedOut: true}
	}

	if !question.CheckAnswer(submitted, cfg.CompareOptionsFor(mode)) {
		return ScoringResult{}
	}

	return ScoringResult{
		IsCorrect:     true,
		PointsAwarded: question.CalculatePoints(true, elapsedMs),
		NewStreak:     priorStreak + 1,
	}
}
