package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event - единица обмена с клиентом: тип и произвольные данные
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager маршрутизирует входящие сообщения по зарегистрированным
// обработчикам и дает сервисам API отправки событий. Реализует
// sessionmanager.Broadcaster.
type Manager struct {
	hub      HubInterface
	handlers map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает менеджер для хаба
func NewManager(hub HubInterface) *Manager {
	return &Manager{
		hub:      hub,
		handlers: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// RegisterHandler регистрирует обработчик входящих сообщений указанного типа.
// Вызывается при старте приложения, до приема соединений.
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.handlers[eventType] = handler
	log.Printf("[Manager] Зарегистрирован обработчик для типа '%s'", eventType)
}

// HandleMessage разбирает сообщение клиента и вызывает обработчик.
// Ошибка обработчика не фатальна для соединения: клиенту уходит
// сообщение об ошибке, связь продолжает жить.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message", "Некорректный формат сообщения")
		return nil
	}

	handler, ok := m.handlers[event.Type]
	if !ok {
		log.Printf("[Manager] Нет обработчика для типа '%s' от %s", event.Type, client.Identity())
		m.SendErrorToClient(client, "unknown_type", fmt.Sprintf("Неизвестный тип сообщения: %s", event.Type))
		return nil
	}

	if err := handler(event.Data, client); err != nil {
		log.Printf("[Manager] Обработчик '%s' вернул ошибку для %s: %v", event.Type, client.Identity(), err)
		m.SendErrorToClient(client, "handler_error", err.Error())
	}
	return nil
}

// SendErrorToClient отправляет клиенту сообщение об ошибке
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	payload, err := json.Marshal(Event{
		Type: "error",
		Data: map[string]string{"code": code, "message": message},
	})
	if err != nil {
		return
	}
	client.enqueue(payload)
}

// SendEventToClient отправляет событие в конкретное соединение
func (m *Manager) SendEventToClient(client *Client, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	client.enqueue(payload)
	return nil
}

// BroadcastEventToSession отправляет событие всем клиентам сессии
func (m *Manager) BroadcastEventToSession(sessionID uint, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	m.hub.BroadcastToSession(sessionID, payload)
	return nil
}

// SendEventToParticipant отправляет событие всем соединениям участника
func (m *Manager) SendEventToParticipant(participantID uint, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	if !m.hub.SendToParticipant(participantID, payload) {
		log.Printf("[Manager] Участник %d не в сети, событие '%s' не доставлено", participantID, eventType)
	}
	return nil
}

// SendEventToHost отправляет событие всем соединениям учителя
func (m *Manager) SendEventToHost(userID uint, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	if !m.hub.SendToHost(userID, payload) {
		log.Printf("[Manager] Учитель %d не в сети, событие '%s' не доставлено", userID, eventType)
	}
	return nil
}

// GetMetrics возвращает счетчики хаба
func (m *Manager) GetMetrics() map[string]interface{} {
	if provider, ok := m.hub.(MetricsProvider); ok {
		return provider.GetMetrics()
	}
	return map[string]interface{}{}
}
