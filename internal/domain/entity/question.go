package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Типы вопросов
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeFillInTheBlank = "fill_in_the_blank"
	QuestionTypeMatching       = "matching"
	QuestionTypeHangman        = "hangman"
)

// DefaultQuestionPoints - базовое количество очков за вопрос
const DefaultQuestionPoints = 1000

// minPointsFraction - нижняя граница начисления при правильном ответе.
// Ответ в самый последний момент получает 10% от базовых очков,
// ответ в момент t=0 получает полные очки, между ними - линейный спад.
// Точная форма кривой - параметр политики, а не жесткое требование.
const minPointsFraction = 0.10

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	// Обработка пустого массива байтов
	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if o == nil || len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос викторины.
// Контент вопроса read-only для ядра: редактирование блокируется, пока
// на викторину ссылается незавершенная сессия (инвариант внешнего редактора).
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	QuizID        uint        `gorm:"not null;index" json:"quiz_id"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Type          string      `gorm:"size:20;not null;default:'multiple_choice'" json:"type"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswer string      `gorm:"size:500;not null" json:"-"` // Скрыто от клиента
	TimeLimitSec  int         `gorm:"not null;default:20" json:"time_limit_sec"`
	Points        int         `gorm:"not null;default:1000" json:"points"`
	SortOrder     int         `gorm:"not null;default:0;index" json:"sort_order"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// CompareOptions управляет нормализацией при сравнении текстовых ответов.
// Используется режимом hangman (accent-insensitive flag в конфиге режима).
type CompareOptions struct {
	CaseInsensitive bool
	IgnoreAccents   bool
}

// CheckAnswer проверяет правильность присланного ответа с учетом типа вопроса.
// Для multiple_choice/true_false/fill_in_the_blank/hangman - строковое равенство
// с опциональной нормализацией; для matching - присланный JSON-объект
// {термин: соответствие} должен совпадать со ВСЕМИ настроенными парами.
func (q *Question) CheckAnswer(submitted string, opts CompareOptions) bool {
	if q.Type == QuestionTypeMatching {
		return q.checkMatching(submitted)
	}
	return normalizeAnswer(submitted, opts) == normalizeAnswer(q.CorrectAnswer, opts)
}

// checkMatching сравнивает присланное соответствие со всеми настроенными парами
func (q *Question) checkMatching(submitted string) bool {
	pairs, err := q.MatchingPairs()
	if err != nil || len(pairs) == 0 {
		return false
	}

	var answer map[string]string
	if err := json.Unmarshal([]byte(submitted), &answer); err != nil {
		return false
	}
	if len(answer) != len(pairs) {
		return false
	}

	for term, match := range pairs {
		if answer[term] != match {
			return false
		}
	}
	return true
}

// MatchingPairs разбирает options вида "термин:соответствие" в карту пар.
// Возвращает ошибку, если хотя бы одна опция не содержит разделитель.
func (q *Question) MatchingPairs() (map[string]string, error) {
	pairs := make(map[string]string, len(q.Options))
	for _, opt := range q.Options {
		term, match, ok := strings.Cut(opt, ":")
		if !ok {
			return nil, errors.New("malformed matching option: missing ':' separator")
		}
		pairs[term] = match
	}
	return pairs, nil
}

// CalculatePoints рассчитывает очки за ответ на вопрос.
// Очки линейно убывают от полного базового значения при elapsed=0
// до пола minPointsFraction при elapsed=time_limit. Неправильный ответ - 0.
// elapsedMs - серверное время от старта вопроса до приема ответа.
func (q *Question) CalculatePoints(isCorrect bool, elapsedMs int64) int {
	if !isCorrect {
		return 0
	}

	base := q.Points
	if base <= 0 {
		base = DefaultQuestionPoints
	}

	limitMs := int64(q.TimeLimitSec) * 1000
	if limitMs <= 0 {
		return base
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > limitMs {
		elapsedMs = limitMs
	}

	fraction := 1.0 - float64(elapsedMs)/float64(limitMs)
	if fraction < minPointsFraction {
		fraction = minPointsFraction
	}
	return int(float64(base) * fraction)
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// accentStripper удаляет комбинируемые диакритические знаки после NFD-декомпозиции
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeAnswer приводит строку к сравнимому виду согласно опциям
func normalizeAnswer(s string, opts CompareOptions) string {
	s = strings.TrimSpace(s)
	if opts.IgnoreAccents {
		if stripped, _, err := transform.String(accentStripper, s); err == nil {
			s = stripped
		}
	}
	if opts.CaseInsensitive {
		s = strings.ToLower(s)
	}
	return s
}
