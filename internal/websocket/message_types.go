package websocket

// Типы входящих сообщений (клиент → сервер).
// Исходящие события сессии формирует ядро (session:state, session:scores и т.д.),
// здесь только то, что сервер готов принять от клиента.
const (
	// ANSWER_SUBMIT - участник присылает ответ на текущий вопрос
	ANSWER_SUBMIT = "answer:submit"

	// SESSION_RESYNC - клиент просит полный снимок состояния после переподключения
	SESSION_RESYNC = "session:resync"

	// SESSION_START, SESSION_ADVANCE, SESSION_FINISH - команды учителя
	SESSION_START   = "session:start"
	SESSION_ADVANCE = "session:advance"
	SESSION_FINISH  = "session:finish"
)

// Роли клиентов
const (
	RoleHost   = "host"
	RolePlayer = "player"
)
