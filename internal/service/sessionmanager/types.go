package sessionmanager

import (
	"errors"
	"sync"
	"time"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
)

// Ошибки ядра сессии
var (
	// ErrNoActiveSession - нет зарегистрированного состояния сессии
	ErrNoActiveSession = errors.New("no active session state")

	// ErrStaleQuestion - ответ пришел на вопрос, который уже не является текущим.
	// Для ученика это не жесткая ошибка: его часы или сеть просто отстали.
	ErrStaleQuestion = errors.New("answer targets a question that is no longer current")

	// ErrParticipantEliminated - выбывший участник может смотреть, но не отвечать
	ErrParticipantEliminated = errors.New("participant is eliminated from this session")
)

// Config содержит настройки компонентов ядра сессии
type Config struct {
	// TTL ключей в Redis
	EliminationFlagTTL time.Duration // Флаг выбывания участника
	AnsweredFlagTTL    time.Duration // Флаг "ответ на вопрос дан"
	AnswerCounterTTL   time.Duration // Счетчик полученных ответов на вопрос
	PinReservationTTL  time.Duration // Резервирование PIN перед вставкой сессии

	// Максимальное количество попыток генерации уникального PIN
	MaxPinAttempts int

	// Максимальное количество попыток отправки событий и интервал между ними
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		EliminationFlagTTL: 24 * time.Hour,
		AnsweredFlagTTL:    time.Hour,
		AnswerCounterTTL:   time.Hour,
		PinReservationTTL:  10 * time.Second,
		MaxPinAttempts:     5,
		MaxRetries:         3,
		RetryInterval:      500 * time.Millisecond,
	}
}

// Broadcaster абстрагирует fan-out слой от ядра.
// Доставка at-least-once и без гарантий порядка: события - только сигнал
// свежести для UI, корректность ядра от них не зависит.
type Broadcaster interface {
	// BroadcastEventToSession отправляет событие всем клиентам сессии
	BroadcastEventToSession(sessionID uint, eventType string, data interface{}) error

	// SendEventToParticipant отправляет событие конкретному участнику
	SendEventToParticipant(participantID uint, eventType string, data interface{}) error
}

// Dependencies содержит зависимости компонентов ядра сессии
type Dependencies struct {
	SessionRepo     repository.SessionRepository
	QuizRepo        repository.QuizRepository
	QuestionRepo    repository.QuestionRepository
	ParticipantRepo repository.ParticipantRepository
	AnswerRepo      repository.AnswerRepository
	ScoreRepo       repository.ScoreRepository
	CacheRepo       repository.CacheRepository
	Broadcaster     Broadcaster
}

// ActiveSessionState хранит рабочее состояние одной живой сессии:
// строку сессии, упорядоченный список вопросов и индекс текущего вопроса
// с серверным временем его старта (Unix ms).
type ActiveSessionState struct {
	Session   *entity.Session
	Questions []entity.Question

	currentIndex int
	startTimeMs  int64

	Mu sync.RWMutex
}

// NewActiveSessionState создает состояние для сессии с вопросами в порядке следования
func NewActiveSessionState(session *entity.Session, questions []entity.Question) *ActiveSessionState {
	return &ActiveSessionState{
		Session:      session,
		Questions:    questions,
		currentIndex: -1,
	}
}

// SetCurrentQuestion устанавливает текущий вопрос и время его старта
func (s *ActiveSessionState) SetCurrentQuestion(index int, startTimeMs int64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.currentIndex = index
	s.startTimeMs = startTimeMs
}

// CurrentQuestion возвращает текущий вопрос и его номер (с 1).
// Возвращает (nil, 0), если текущего вопроса нет.
func (s *ActiveSessionState) CurrentQuestion() (*entity.Question, int) {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	if s.currentIndex < 0 || s.currentIndex >= len(s.Questions) {
		return nil, 0
	}
	return &s.Questions[s.currentIndex], s.currentIndex + 1
}

// CurrentIndex возвращает индекс текущего вопроса (-1, если вопрос не задан)
func (s *ActiveSessionState) CurrentIndex() int {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.currentIndex
}

// StartTimeMs возвращает серверное время старта текущего вопроса (Unix ms)
func (s *ActiveSessionState) StartTimeMs() int64 {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return s.startTimeMs
}

// AnswerWindow одним согласованным чтением возвращает все, что нужно для
// приема ответа: принимает ли сессия ответы, текущий вопрос и время его
// старта. Три отдельных чтения могли бы перемежаться с переходом.
func (s *ActiveSessionState) AnswerWindow() (acceptsAnswers bool, question *entity.Question, startTimeMs int64) {
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	acceptsAnswers = s.Session.AcceptsAnswers()
	if s.currentIndex >= 0 && s.currentIndex < len(s.Questions) {
		question = &s.Questions[s.currentIndex]
		startTimeMs = s.startTimeMs
	}
	return acceptsAnswers, question, startTimeMs
}
