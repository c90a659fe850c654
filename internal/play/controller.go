// Package play содержит клиентскую машину состояний участника.
// Контроллер не общается с сетью сам: ему скармливают снимки состояния
// и результаты ответов, он решает, какой экран показывать и сколько
// времени осталось.
package play

import (
	"strings"
	"sync"
	"time"

	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
)

// Phase - фаза экрана участника
type Phase string

const (
	PhaseWaitingRoom    Phase = "waiting_room"
	PhaseQuestionActive Phase = "question_active"
	PhaseAnswerFeedback Phase = "answer_feedback"
	PhaseFinished       Phase = "finished"
)

// Статусы сессии в снимках
const (
	statusWaiting  = "waiting"
	statusActive   = "active"
	statusFinished = "finished"
)

// HangmanState - локальное состояние виселицы: буквы и жизни живут только
// на клиенте, сервер видит лишь финальное слово
type HangmanState struct {
	GuessedLetters []string
	Revealed       []bool
	LivesLeft      int
}

// Controller - машина состояний экрана участника. Управляется снимками:
// события могут теряться и приходить не по порядку, поэтому снимки со
// старой версией отбрасываются, а каждый принятый полностью задает фазу.
type Controller struct {
	mu sync.Mutex

	phase       Phase
	lastVersion int

	question       *sessionmanager.QuestionView
	questionNumber int
	totalQuestions int

	// Локальный дедлайн текущего вопроса, вычисленный из серверного штампа
	deadline time.Time

	answered   bool
	lastResult *sessionmanager.AnswerResult

	hangman *HangmanState

	hangmanLives int
}

// NewController создает контроллер в фазе зала ожидания.
// hangmanLives - количество жизней для локального состояния виселицы.
func NewController(hangmanLives int) *Controller {
	return &Controller{
		phase:        PhaseWaitingRoom,
		hangmanLives: hangmanLives,
	}
}

// ApplySnapshot применяет снимок состояния сессии. Возвращает true,
// если снимок принят (не устаревший).
func (c *Controller) ApplySnapshot(snapshot *sessionmanager.StateSnapshot, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Версия сессии монотонна; снимок с меньшей версией - опоздавшее
	// событие, его состояние уже неактуально
	if snapshot.Version < c.lastVersion {
		return false
	}
	c.lastVersion = snapshot.Version

	switch snapshot.Status {
	case statusWaiting:
		c.phase = PhaseWaitingRoom
		c.resetQuestionState()
	case statusFinished:
		c.phase = PhaseFinished
		c.resetQuestionState()
	case statusActive:
		c.applyActiveSnapshot(snapshot, now)
	}
	c.totalQuestions = snapshot.TotalQuestions
	return true
}

func (c *Controller) applyActiveSnapshot(snapshot *sessionmanager.StateSnapshot, now time.Time) {
	if snapshot.Question == nil {
		return
	}

	questionChanged := c.question == nil || c.question.ID != snapshot.Question.ID
	if questionChanged {
		// Новый вопрос: ответ, результат и виселица начинаются заново
		c.resetQuestionState()
		c.question = snapshot.Question
		c.questionNumber = snapshot.QuestionNumber
		if snapshot.Question.WordLength > 0 {
			c.hangman = &HangmanState{
				Revealed:  make([]bool, snapshot.Question.WordLength),
				LivesLeft: c.hangmanLives,
			}
		}
	}

	// Дедлайн считается от серверного штампа старта и серверного "сейчас"
	// из снимка: локальные часы участвуют только как монотонная база
	remaining := time.Duration(snapshot.QuestionStartMs+int64(snapshot.Question.TimeLimitSec)*1000-snapshot.ServerTimeMs) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}
	c.deadline = now.Add(remaining)

	if !c.answered {
		c.phase = PhaseQuestionActive
	}
}

func (c *Controller) resetQuestionState() {
	c.question = nil
	c.questionNumber = 0
	c.answered = false
	c.lastResult = nil
	c.hangman = nil
	c.deadline = time.Time{}
}

// MarkSubmitted фиксирует локально, что ответ отправлен: интерфейс блокирует
// повторную отправку, не дожидаясь подтверждения сервера
func (c *Controller) MarkSubmitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = true
}

// ApplyAnswerResult применяет подтвержденный сервером результат ответа
func (c *Controller) ApplyAnswerResult(result *sessionmanager.AnswerResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Результат по чужому вопросу - опоздавшее событие
	if c.question == nil || c.question.ID != result.QuestionID {
		return
	}
	c.answered = true
	c.lastResult = result
	c.phase = PhaseAnswerFeedback
}

// Tick проверяет дедлайн. Если время вышло, а ответа нет, вопрос локально
// помечается просроченным без обращения к серверу: ноль очков гарантирован
// и так, лишний запрос ничего не изменит.
// Возвращает true, если фаза изменилась.
func (c *Controller) Tick(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseQuestionActive || c.deadline.IsZero() {
		return false
	}
	if now.Before(c.deadline) {
		return false
	}

	c.answered = true
	c.lastResult = &sessionmanager.AnswerResult{
		QuestionID: c.question.ID,
		TimedOut:   true,
	}
	c.phase = PhaseAnswerFeedback
	return true
}

// TimeRemaining возвращает оставшееся время текущего вопроса
func (c *Controller) TimeRemaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseQuestionActive || c.deadline.IsZero() {
		return 0
	}
	remaining := c.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Phase возвращает текущую фазу
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Question возвращает текущий вопрос и его номер
func (c *Controller) Question() (*sessionmanager.QuestionView, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.question, c.questionNumber
}

// LastResult возвращает результат последнего ответа (nil, если его нет)
func (c *Controller) LastResult() *sessionmanager.AnswerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// CanSubmit сообщает, можно ли сейчас отправить ответ
func (c *Controller) CanSubmit(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseQuestionActive && !c.answered && now.Before(c.deadline)
}

// Hangman возвращает локальное состояние виселицы (nil вне режима)
func (c *Controller) Hangman() *HangmanState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangman
}

// RecordHangmanGuess фиксирует локальную попытку буквы. positions - позиции
// буквы в слове (пусто при промахе). Возвращает false, если буква уже
// пробовалась или состояние виселицы не активно.
func (c *Controller) RecordHangmanGuess(letter string, positions []int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hangman == nil || c.phase != PhaseQuestionActive {
		return false
	}
	letter = strings.ToLower(letter)
	for _, guessed := range c.hangman.GuessedLetters {
		if guessed == letter {
			return false
		}
	}

	c.hangman.GuessedLetters = append(c.hangman.GuessedLetters, letter)
	if len(positions) == 0 {
		if c.hangman.LivesLeft > 0 {
			c.hangman.LivesLeft--
		}
		return true
	}
	for _, pos := range positions {
		if pos >= 0 && pos < len(c.hangman.Revealed) {
			c.hangman.Revealed[pos] = true
		}
	}
	return true
}

// HangmanSolved сообщает, открыто ли все слово
func (c *Controller) HangmanSolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hangman == nil || len(c.hangman.Revealed) == 0 {
		return false
	}
	for _, revealed := range c.hangman.Revealed {
		if !revealed {
			return false
		}
	}
	return true
}

// HangmanExhausted сообщает, кончились ли локальные жизни виселицы
func (c *Controller) HangmanExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangman != nil && c.hangman.LivesLeft <= 0
}
