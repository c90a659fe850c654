package repository

import "errors"

var (
	// ErrPinTaken означает, что PIN уже занят другой незавершенной сессией.
	ErrPinTaken = errors.New("pin is already taken by a non-finished session")

	// ErrVersionConflict означает, что переход отвергнут optimistic-проверкой версии:
	// вызывающий видел устаревшее состояние сессии и должен перечитать его.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrSessionNotWaiting означает, что сессия не находится в статусе waiting.
	ErrSessionNotWaiting = errors.New("session is not in waiting status")

	// ErrSessionNotActive означает, что сессия не принимает ответы/переходы.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrDuplicateAnswer означает, что ответ участника на этот вопрос уже записан
	// (определяется по unique constraint на (participant_id, question_id)).
	ErrDuplicateAnswer = errors.New("participant already answered this question")
)
