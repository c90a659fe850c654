package play

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
)

func activeSnapshot(version int, questionID uint, startMs, serverMs int64) *sessionmanager.StateSnapshot {
	return &sessionmanager.StateSnapshot{
		SessionID: 10,
		Status:    "active",
		Version:   version,
		Question: &sessionmanager.QuestionView{
			ID:           questionID,
			Text:         "2+2?",
			TimeLimitSec: 20,
			Points:       1000,
		},
		QuestionNumber:  1,
		TotalQuestions:  3,
		QuestionStartMs: startMs,
		ServerTimeMs:    serverMs,
	}
}

func TestController_StartsInWaitingRoom(t *testing.T) {
	c := NewController(6)
	assert.Equal(t, PhaseWaitingRoom, c.Phase())
}

func TestController_SnapshotDrivesPhases(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	ok := c.ApplySnapshot(activeSnapshot(1, 100, 5000, 5000), now)
	require.True(t, ok)
	assert.Equal(t, PhaseQuestionActive, c.Phase())

	ok = c.ApplySnapshot(&sessionmanager.StateSnapshot{Status: "finished", Version: 3}, now)
	require.True(t, ok)
	assert.Equal(t, PhaseFinished, c.Phase())
}

func TestController_RejectsStaleSnapshot(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	require.True(t, c.ApplySnapshot(activeSnapshot(5, 101, 5000, 5000), now))

	// Опоздавшее событие с меньшей версией не откатывает состояние
	ok := c.ApplySnapshot(activeSnapshot(4, 100, 1000, 1000), now)
	assert.False(t, ok)
	q, _ := c.Question()
	assert.Equal(t, uint(101), q.ID)
}

func TestController_DeadlineFromServerClock(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	// Сервер сообщает: вопрос открыт 5 секунд назад, лимит 20
	c.ApplySnapshot(activeSnapshot(1, 100, 10000, 15000), now)

	remaining := c.TimeRemaining(now)
	assert.InDelta(t, (15 * time.Second).Seconds(), remaining.Seconds(), 0.01)
}

func TestController_TickMarksTimedOutLocally(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	c.ApplySnapshot(activeSnapshot(1, 100, 0, 19500), now)

	// До дедлайна фаза не меняется
	assert.False(t, c.Tick(now))

	changed := c.Tick(now.Add(time.Second))
	assert.True(t, changed)
	assert.Equal(t, PhaseAnswerFeedback, c.Phase())

	result := c.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.TimedOut)
	assert.False(t, c.CanSubmit(now.Add(2*time.Second)))
}

func TestController_AnswerResultMovesToFeedback(t *testing.T) {
	c := NewController(6)
	now := time.Now()
	c.ApplySnapshot(activeSnapshot(1, 100, 5000, 5000), now)

	c.MarkSubmitted()
	assert.False(t, c.CanSubmit(now))

	c.ApplyAnswerResult(&sessionmanager.AnswerResult{QuestionID: 100, IsCorrect: true, PointsAwarded: 870})

	assert.Equal(t, PhaseAnswerFeedback, c.Phase())
	assert.Equal(t, 870, c.LastResult().PointsAwarded)
}

func TestController_IgnoresResultForOtherQuestion(t *testing.T) {
	c := NewController(6)
	now := time.Now()
	c.ApplySnapshot(activeSnapshot(1, 100, 5000, 5000), now)

	c.ApplyAnswerResult(&sessionmanager.AnswerResult{QuestionID: 99, IsCorrect: true})

	assert.Equal(t, PhaseQuestionActive, c.Phase())
	assert.Nil(t, c.LastResult())
}

func TestController_NewQuestionResetsState(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	c.ApplySnapshot(activeSnapshot(1, 100, 5000, 5000), now)
	c.MarkSubmitted()
	c.ApplyAnswerResult(&sessionmanager.AnswerResult{QuestionID: 100, IsCorrect: false})
	assert.Equal(t, PhaseAnswerFeedback, c.Phase())

	// Следующий вопрос возвращает фазу активного вопроса и сбрасывает ответ
	c.ApplySnapshot(activeSnapshot(2, 101, 30000, 30000), now)

	assert.Equal(t, PhaseQuestionActive, c.Phase())
	assert.Nil(t, c.LastResult())
	assert.True(t, c.CanSubmit(now.Add(time.Second)))
}

func TestController_ResyncSameQuestionKeepsAnswer(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	c.ApplySnapshot(activeSnapshot(1, 100, 5000, 5000), now)
	c.MarkSubmitted()

	// Переподключение: тот же вопрос в снимке не сбрасывает факт ответа
	c.ApplySnapshot(activeSnapshot(1, 100, 5000, 9000), now.Add(4*time.Second))

	assert.False(t, c.CanSubmit(now.Add(5*time.Second)))
}

func TestController_HangmanLocalState(t *testing.T) {
	c := NewController(6)
	now := time.Now()

	snapshot := activeSnapshot(1, 100, 5000, 5000)
	snapshot.Question.Type = "hangman"
	snapshot.Question.WordLength = 4
	c.ApplySnapshot(snapshot, now)

	hangman := c.Hangman()
	require.NotNil(t, hangman)
	assert.Equal(t, 6, hangman.LivesLeft)

	// Промах снимает локальную жизнь
	require.True(t, c.RecordHangmanGuess("z", nil))
	assert.Equal(t, 5, c.Hangman().LivesLeft)

	// Повтор буквы не проходит
	assert.False(t, c.RecordHangmanGuess("z", nil))
	assert.Equal(t, 5, c.Hangman().LivesLeft)

	// Попадания открывают позиции
	require.True(t, c.RecordHangmanGuess("a", []int{1, 3}))
	assert.False(t, c.HangmanSolved())
	require.True(t, c.RecordHangmanGuess("b", []int{0, 2}))
	assert.True(t, c.HangmanSolved())
}

func TestController_HangmanExhausted(t *testing.T) {
	c := NewController(1)
	now := time.Now()

	snapshot := activeSnapshot(1, 100, 5000, 5000)
	snapshot.Question.Type = "hangman"
	snapshot.Question.WordLength = 3
	c.ApplySnapshot(snapshot, now)

	c.RecordHangmanGuess("x", nil)
	assert.True(t, c.HangmanExhausted())
}
