package sessionmanager

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
)

// AnswerProcessor - координатор приема ответов. Весь путь от присланного
// текста до записанного результата проходит здесь: проверки актуальности,
// серверный замер времени, оценка, политика режима, атомарная запись
// и пост-фактум события.
type AnswerProcessor struct {
	config *Config
	deps   *Dependencies
}

// NewAnswerProcessor создает новый процессор ответов
func NewAnswerProcessor(config *Config, deps *Dependencies) *AnswerProcessor {
	return &AnswerProcessor{
		config: config,
		deps:   deps,
	}
}

// AnswerResult - результат обработки ответа, возвращаемый участнику
type AnswerResult struct {
	QuestionID     uint  `json:"question_id"`
	IsCorrect      bool  `json:"is_correct"`
	TimedOut       bool  `json:"timed_out"`
	PointsAwarded  int   `json:"points_awarded"`
	CurrentStreak  int   `json:"current_streak"`
	LivesLeft      int   `json:"lives_left"`
	IsEliminated   bool  `json:"is_eliminated"`
	ResponseTimeMs int64 `json:"response_time_ms"`

	// AlreadyAnswered - повторная отправка; возвращен первоначальный результат
	AlreadyAnswered bool `json:"already_answered"`
}

// ProcessAnswer обрабатывает ответ участника на вопрос.
// Конкурентные и повторные отправки схлопываются до одной записи уникальным
// индексом БД: кто бы ни пришел вторым, он получает первоначальный результат,
// а не второй счет (at-most-once).
func (ap *AnswerProcessor) ProcessAnswer(state *ActiveSessionState, participantID, questionID uint, answerText string) (*AnswerResult, error) {
	if state == nil {
		return nil, ErrNoActiveSession
	}
	session := state.Session

	acceptsAnswers, currentQuestion, startMs := state.AnswerWindow()
	if !acceptsAnswers {
		return nil, repository.ErrSessionNotActive
	}

	// Ответ принимается только на текущий вопрос. Отстал - значит указатель
	// уже передвинули; это штатная гонка, а не ошибка протокола.
	if currentQuestion == nil || currentQuestion.ID != questionID {
		return nil, ErrStaleQuestion
	}

	participant, err := ap.deps.ParticipantRepo.GetByID(participantID)
	if err != nil {
		return nil, fmt.Errorf("participant lookup: %w", err)
	}
	if participant.SessionID != session.ID {
		return nil, fmt.Errorf("%w: participant does not belong to this session", apperrors.ErrValidation)
	}
	if participant.IsEliminated {
		return nil, ErrParticipantEliminated
	}

	if startMs == 0 {
		return nil, fmt.Errorf("question start time is not set for session %d", session.ID)
	}

	// Время отклика меряется от серверного штампа старта вопроса до момента
	// получения ответа сервером. Часы клиента в расчете не участвуют.
	elapsedMs := time.Now().UnixMilli() - startMs
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	result := ScoreAnswer(currentQuestion, answerText, elapsedMs, participant.CurrentStreak, session.GameMode, session.ModeConfig)
	effect := ApplyModePolicy(session.GameMode, participant, result)

	maxStreak := participant.MaxStreak
	if result.NewStreak > maxStreak {
		maxStreak = result.NewStreak
	}

	answer := &entity.Answer{
		SessionID:      session.ID,
		ParticipantID:  participant.ID,
		QuestionID:     questionID,
		AnswerText:     answerText,
		IsCorrect:      result.IsCorrect,
		PointsAwarded:  result.PointsAwarded,
		ResponseTimeMs: elapsedMs,
		AnsweredAt:     time.Now().UTC(),
	}
	upd := repository.StreakUpdate{
		CurrentStreak: result.NewStreak,
		MaxStreak:     maxStreak,
		LivesLeft:     effect.LivesLeft,
		IsEliminated:  effect.IsEliminated,
	}

	if err := ap.deps.AnswerRepo.RecordScored(answer, upd); err != nil {
		if errors.Is(err, repository.ErrDuplicateAnswer) {
			return ap.replayRecorded(participant, questionID)
		}
		return nil, fmt.Errorf("record answer: %w", err)
	}

	log.Printf("[AnswerProcessor] Сессия %d: участник %d ответил на вопрос %d (correct=%v, points=%d, time=%dms)",
		session.ID, participant.ID, questionID, result.IsCorrect, result.PointsAwarded, elapsedMs)

	// Запись состоялась, дальше только best-effort сигналы для UI
	ap.afterRecord(state, participant, questionID, effect)

	return &AnswerResult{
		QuestionID:     questionID,
		IsCorrect:      result.IsCorrect,
		TimedOut:       result.TimedOut,
		PointsAwarded:  result.PointsAwarded,
		CurrentStreak:  result.NewStreak,
		LivesLeft:      effect.LivesLeft,
		IsEliminated:   effect.IsEliminated,
		ResponseTimeMs: elapsedMs,
	}, nil
}

// replayRecorded возвращает первоначальный результат при повторной отправке.
// Повтор не ошибка: клиент мог переотправить ответ после обрыва связи,
// не дождавшись подтверждения.
func (ap *AnswerProcessor) replayRecorded(participant *entity.Participant, questionID uint) (*AnswerResult, error) {
	recorded, err := ap.deps.AnswerRepo.GetByParticipantAndQuestion(participant.ID, questionID)
	if err != nil {
		return nil, fmt.Errorf("replay recorded answer: %w", err)
	}

	log.Printf("[AnswerProcessor] Повторный ответ участника %d на вопрос %d, возвращаю первоначальный результат",
		participant.ID, questionID)

	return &AnswerResult{
		QuestionID:      questionID,
		IsCorrect:       recorded.IsCorrect,
		PointsAwarded:   recorded.PointsAwarded,
		CurrentStreak:   participant.CurrentStreak,
		LivesLeft:       participant.LivesLeft,
		IsEliminated:    participant.IsEliminated,
		ResponseTimeMs:  recorded.ResponseTimeMs,
		AlreadyAnswered: true,
	}, nil
}

// afterRecord выполняет пост-фактум работу после успешной записи ответа:
// флаги в Redis, персональный результат, счетчик ответов и снимок очков.
// Любая ошибка здесь логируется и не откатывает запись.
func (ap *AnswerProcessor) afterRecord(state *ActiveSessionState, participant *entity.Participant, questionID uint, effect ModeEffect) {
	sessionID := state.Session.ID

	answeredKey := fmt.Sprintf("session:%d:participant:%d:answered:%d", sessionID, participant.ID, questionID)
	if err := ap.deps.CacheRepo.Set(answeredKey, "1", ap.config.AnsweredFlagTTL); err != nil {
		log.Printf("[AnswerProcessor] Не удалось установить флаг ответа: %v", err)
	}

	if effect.IsEliminated && !participant.IsEliminated {
		ap.markEliminated(sessionID, participant)
	}

	ap.broadcastAnswerCount(state, questionID)
	ap.broadcastScores(sessionID)
}

// markEliminated фиксирует выбывание участника: флаг в Redis и событие сессии
func (ap *AnswerProcessor) markEliminated(sessionID uint, participant *entity.Participant) {
	eliminationKey := fmt.Sprintf("session:%d:eliminated:%d", sessionID, participant.ID)
	if err := ap.deps.CacheRepo.Set(eliminationKey, "1", ap.config.EliminationFlagTTL); err != nil {
		log.Printf("[AnswerProcessor] Не удалось установить флаг выбывания: %v", err)
	}

	log.Printf("[AnswerProcessor] Участник %d (%s) выбыл из сессии %d",
		participant.ID, participant.Nickname, sessionID)

	event := map[string]interface{}{
		"session_id":     sessionID,
		"participant_id": participant.ID,
		"nickname":       participant.Nickname,
	}
	if err := ap.deps.Broadcaster.BroadcastEventToSession(sessionID, EventElimination, event); err != nil {
		log.Printf("[AnswerProcessor] Ошибка рассылки события выбывания: %v", err)
	}
}

// broadcastAnswerCount рассылает снимок счетчика полученных ответов.
// Живой счетчик ведется инкрементом в Redis и сбрасывается машиной
// переходов при смене вопроса; если Redis недоступен, счет берется из БД.
// При перекрытии событий клиенты сойдутся на последнем снимке.
func (ap *AnswerProcessor) broadcastAnswerCount(state *ActiveSessionState, questionID uint) {
	sessionID := state.Session.ID
	count, err := ap.incrementAnswerCounter(sessionID)
	if err != nil {
		log.Printf("[AnswerProcessor] Счетчик ответов в Redis недоступен: %v", err)
		count, err = ap.deps.AnswerRepo.CountByQuestion(sessionID, questionID)
		if err != nil {
			log.Printf("[AnswerProcessor] Ошибка подсчета ответов: %v", err)
			return
		}
	}
	participants, err := ap.deps.ParticipantRepo.CountBySessionID(sessionID)
	if err != nil {
		log.Printf("[AnswerProcessor] Ошибка подсчета участников: %v", err)
		return
	}

	snapshot := &AnswerCountSnapshot{
		SessionID:    sessionID,
		QuestionID:   questionID,
		AnswerCount:  count,
		Participants: participants,
	}
	if err := ap.deps.Broadcaster.BroadcastEventToSession(sessionID, EventSessionAnswerCount, snapshot); err != nil {
		log.Printf("[AnswerProcessor] Ошибка рассылки счетчика ответов: %v", err)
	}
}

// incrementAnswerCounter увеличивает счетчик ответов текущего вопроса.
// TTL выставляется на первом инкременте, когда ключ только появился.
func (ap *AnswerProcessor) incrementAnswerCounter(sessionID uint) (int64, error) {
	key := answerCounterKey(sessionID)
	count, err := ap.deps.CacheRepo.Increment(key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := ap.deps.CacheRepo.Expire(key, ap.config.AnswerCounterTTL); err != nil {
			log.Printf("[AnswerProcessor] Не удалось установить TTL счетчика ответов: %v", err)
		}
	}
	return count, nil
}

// answerCounterKey - ключ счетчика ответов сессии в Redis
func answerCounterKey(sessionID uint) string {
	return fmt.Sprintf("session:%d:answer_count", sessionID)
}

// broadcastScores рассылает полный снимок таблицы очков
func (ap *AnswerProcessor) broadcastScores(sessionID uint) {
	snapshot, err := BuildScoresSnapshot(ap.deps, sessionID)
	if err != nil {
		log.Printf("[AnswerProcessor] Ошибка сборки таблицы очков: %v", err)
		return
	}
	if err := ap.deps.Broadcaster.BroadcastEventToSession(sessionID, EventSessionScores, snapshot); err != nil {
		log.Printf("[AnswerProcessor] Ошибка рассылки очков: %v", err)
	}
}
