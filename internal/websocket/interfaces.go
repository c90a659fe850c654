package websocket

// HubInterface определяет контракт хаба для Manager и обработчиков.
// Позволяет подменять хаб в тестах, не поднимая реальные соединения.
type HubInterface interface {
	// Register ставит клиента в очередь на регистрацию
	Register(client *Client)

	// Unregister ставит клиента в очередь на удаление
	Unregister(client *Client)

	// BroadcastToSession отправляет сообщение всем клиентам сессии
	BroadcastToSession(sessionID uint, message []byte)

	// SendToParticipant отправляет сообщение всем соединениям участника.
	// Возвращает true, если нашлось хотя бы одно живое соединение.
	SendToParticipant(participantID uint, message []byte) bool

	// SendToHost отправляет сообщение всем соединениям учителя-владельца
	SendToHost(userID uint, message []byte) bool

	// ClientCount возвращает число подключенных клиентов
	ClientCount() int

	// Close останавливает хаб и закрывает все соединения
	Close()
}

// MetricsProvider отдает счетчики хаба для диагностического эндпоинта
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
}
