package sessionmanager

import (
	"sort"
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
)

// Типы событий сессии. Каждое событие несет полный снимок своей части
// состояния, а не дельту: клиент, пропустивший событие, восстанавливается
// следующим без пересборки истории.
const (
	EventSessionState       = "session:state"
	EventSessionAnswerCount = "session:answer_count"
	EventSessionScores      = "session:scores"
	EventAnswerResult       = "session:answer_result"
	EventParticipantJoined  = "session:participant_joined"
	EventElimination        = "session:elimination"
)

// QuestionView - вопрос в том виде, в каком его видят участники (без правильного ответа)
type QuestionView struct {
	ID           uint     `json:"id"`
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Options      []string `json:"options,omitempty"`
	TimeLimitSec int      `json:"time_limit_sec"`
	Points       int      `json:"points"`
	// Для виселицы клиенту нужна только маска слова
	WordLength int `json:"word_length,omitempty"`
}

// NewQuestionView строит представление вопроса для участника
func NewQuestionView(q *entity.Question) *QuestionView {
	if q == nil {
		return nil
	}
	view := &QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		Type:         q.Type,
		Options:      []string(q.Options),
		TimeLimitSec: q.TimeLimitSec,
		Points:       q.Points,
	}
	if q.Type == entity.QuestionTypeHangman {
		view.WordLength = len([]rune(q.CorrectAnswer))
	}
	return view
}

// StateSnapshot - полный снимок состояния сессии для события session:state
// и для ресинхронизации после переподключения
type StateSnapshot struct {
	SessionID       uint          `json:"session_id"`
	Status          string        `json:"status"`
	GameMode        string        `json:"game_mode"`
	Version         int           `json:"version"`
	Question        *QuestionView `json:"question,omitempty"`
	QuestionNumber  int           `json:"question_number,omitempty"`
	TotalQuestions  int           `json:"total_questions"`
	QuestionStartMs int64         `json:"question_start_ms,omitempty"`
	ServerTimeMs    int64         `json:"server_time_ms"`
}

// BuildStateSnapshot собирает снимок из текущего состояния сессии.
// Блокировку состояния берет сам: все поля читаются в одной критической
// секции, чтобы конкурентный переход не дал рваный снимок (новая версия
// со старым вопросом).
func BuildStateSnapshot(state *ActiveSessionState) *StateSnapshot {
	state.Mu.RLock()
	defer state.Mu.RUnlock()

	snapshot := &StateSnapshot{
		SessionID:      state.Session.ID,
		Status:         state.Session.Status,
		GameMode:       state.Session.GameMode,
		Version:        state.Session.Version,
		TotalQuestions: len(state.Questions),
		ServerTimeMs:   time.Now().UnixMilli(),
	}
	if state.currentIndex >= 0 && state.currentIndex < len(state.Questions) {
		snapshot.Question = NewQuestionView(&state.Questions[state.currentIndex])
		snapshot.QuestionNumber = state.currentIndex + 1
		snapshot.QuestionStartMs = state.startTimeMs
	}
	return snapshot
}

// AnswerCountSnapshot - снимок счетчика ответов на текущий вопрос
type AnswerCountSnapshot struct {
	SessionID    uint  `json:"session_id"`
	QuestionID   uint  `json:"question_id"`
	AnswerCount  int64 `json:"answer_count"`
	Participants int64 `json:"participants"`
}

// ScoreRow - одна строка таблицы очков
type ScoreRow struct {
	ParticipantID uint   `json:"participant_id"`
	Nickname      string `json:"nickname"`
	Team          string `json:"team,omitempty"`
	TotalPoints   int    `json:"total_points"`
	IsEliminated  bool   `json:"is_eliminated"`
}

// ScoresSnapshot - полный снимок таблицы очков сессии
type ScoresSnapshot struct {
	SessionID uint       `json:"session_id"`
	Scores    []ScoreRow `json:"scores"`
}

// BuildScoresSnapshot собирает снимок таблицы очков из БД.
// Участники без единого ответа попадают в таблицу с нулем очков.
func BuildScoresSnapshot(deps *Dependencies, sessionID uint) (*ScoresSnapshot, error) {
	participants, err := deps.ParticipantRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	scores, err := deps.ScoreRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	totals := make(map[uint]int, len(scores))
	for _, score := range scores {
		totals[score.ParticipantID] = score.TotalPoints
	}

	rows := make([]ScoreRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, ScoreRow{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Team:          p.Team,
			TotalPoints:   totals[p.ID],
			IsEliminated:  p.IsEliminated,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalPoints > rows[j].TotalPoints
	})

	return &ScoresSnapshot{SessionID: sessionID, Scores: rows}, nil
}
