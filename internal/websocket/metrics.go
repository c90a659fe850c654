package websocket

import (
	"sync/atomic"
	"time"
)

// HubMetrics - атомарные счетчики хаба для диагностики
type HubMetrics struct {
	totalConnections       atomic.Int64
	activeConnections      atomic.Int64
	messagesSent           atomic.Int64
	messagesReceived       atomic.Int64
	connectionErrors       atomic.Int64
	inactiveClientsRemoved atomic.Int64
	lastCleanupTime        atomic.Int64
}

// NewHubMetrics создает счетчики хаба
func NewHubMetrics() *HubMetrics {
	return &HubMetrics{}
}

// IncrementTotalConnections учитывает новое соединение
func (m *HubMetrics) IncrementTotalConnections() {
	m.totalConnections.Add(1)
	m.activeConnections.Add(1)
}

// DecrementActiveConnections учитывает закрытие соединения
func (m *HubMetrics) DecrementActiveConnections() {
	m.activeConnections.Add(-1)
}

// AddMessageSent учитывает отправленные сообщения
func (m *HubMetrics) AddMessageSent(count int64) {
	m.messagesSent.Add(count)
}

// AddMessageReceived учитывает полученное сообщение
func (m *HubMetrics) AddMessageReceived() {
	m.messagesReceived.Add(1)
}

// AddConnectionError учитывает ошибку соединения
func (m *HubMetrics) AddConnectionError() {
	m.connectionErrors.Add(1)
}

// AddInactiveClientsRemoved учитывает вычищенных неактивных клиентов
func (m *HubMetrics) AddInactiveClientsRemoved(count int64) {
	m.inactiveClientsRemoved.Add(count)
}

// UpdateLastCleanupTime фиксирует время последней чистки
func (m *HubMetrics) UpdateLastCleanupTime() {
	m.lastCleanupTime.Store(time.Now().Unix())
}

// GetAllMetrics возвращает снимок всех счетчиков
func (m *HubMetrics) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"total_connections":        m.totalConnections.Load(),
		"active_connections":       m.activeConnections.Load(),
		"messages_sent":            m.messagesSent.Load(),
		"messages_received":        m.messagesReceived.Load(),
		"connection_errors":        m.connectionErrors.Load(),
		"inactive_clients_removed": m.inactiveClientsRemoved.Load(),
		"last_cleanup_time":        m.lastCleanupTime.Load(),
	}
}
