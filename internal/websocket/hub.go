package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Интервалы обслуживания хаба
const (
	cleanupInterval   = time.Minute
	inactivityTimeout = 5 * time.Minute
)

// sessionEnvelope - обертка сообщения при пересылке между инстансами
type sessionEnvelope struct {
	SenderID  string `json:"sender_id"`
	SessionID uint   `json:"session_id"`
	Payload   []byte `json:"payload"`
}

// Hub владеет всеми WebSocket-клиентами процесса и их привязкой к сессиям.
// Регистрация, удаление и рассылка сериализуются одним run-циклом, поэтому
// карты клиентов не требуют блокировок внутри цикла. Снаружи читается
// только метрика.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	// Все клиенты процесса
	clients map[*Client]bool

	// Клиенты по сессиям
	sessions map[uint]map[*Client]bool

	// Соединения участников и учителей (у одного человека их может быть несколько)
	participants map[uint]map[*Client]bool
	hosts        map[uint]map[*Client]bool

	// Снаружи хаба карты недоступны: запросы идут через каналы
	broadcastCh chan sessionEnvelope
	sendCh      chan directSend
	countCh     chan chan int

	// Межпроцессная доставка событий: сообщение, опубликованное одним
	// инстансом, доигрывается локальными клиентами всех остальных
	pubsub     PubSubProvider
	instanceID string

	metrics *HubMetrics

	closeOnce sync.Once
	done      chan struct{}
}

type directSend struct {
	participantID uint
	hostUserID    uint
	message       []byte
	delivered     chan bool
}

// NewHub создает хаб. provider может быть NoOpPubSub для одиночного инстанса.
func NewHub(provider PubSubProvider) *Hub {
	return &Hub{
		register:     make(chan *Client, 64),
		unregister:   make(chan *Client, 64),
		clients:      make(map[*Client]bool),
		sessions:     make(map[uint]map[*Client]bool),
		participants: make(map[uint]map[*Client]bool),
		hosts:        make(map[uint]map[*Client]bool),
		broadcastCh:  make(chan sessionEnvelope, 256),
		sendCh:       make(chan directSend, 256),
		countCh:      make(chan chan int),
		pubsub:       provider,
		instanceID:   generateInstanceID(),
		metrics:      NewHubMetrics(),
		done:         make(chan struct{}),
	}
}

// Run запускает главный цикл хаба. Блокируется до Close.
func (h *Hub) Run() {
	log.Printf("[Hub] Запущен, instance=%s", h.instanceID)

	go h.runPubSubRelay()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case envelope := <-h.broadcastCh:
			h.handleBroadcast(envelope)
		case req := <-h.sendCh:
			h.handleDirectSend(req)
		case reply := <-h.countCh:
			reply <- len(h.clients)
		case <-ticker.C:
			h.cleanupInactiveClients()
		case <-h.done:
			h.closeAllClients()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	h.metrics.IncrementTotalConnections()

	sessionID := client.SessionID()
	if sessionID != 0 {
		if h.sessions[sessionID] == nil {
			h.sessions[sessionID] = make(map[*Client]bool)
		}
		h.sessions[sessionID][client] = true
	}

	switch client.Role {
	case RolePlayer:
		if h.participants[client.ParticipantID] == nil {
			h.participants[client.ParticipantID] = make(map[*Client]bool)
		}
		h.participants[client.ParticipantID][client] = true
	case RoleHost:
		if h.hosts[client.UserID] == nil {
			h.hosts[client.UserID] = make(map[*Client]bool)
		}
		h.hosts[client.UserID][client] = true
	}

	log.Printf("[Hub] Клиент %s зарегистрирован в сессии %d (всего клиентов: %d)",
		client.Identity(), sessionID, len(h.clients))
}

func (h *Hub) handleUnregister(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	h.metrics.DecrementActiveConnections()

	if sessionClients := h.sessions[client.SessionID()]; sessionClients != nil {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.sessions, client.SessionID())
		}
	}
	if client.Role == RolePlayer {
		if conns := h.participants[client.ParticipantID]; conns != nil {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.participants, client.ParticipantID)
			}
		}
	}
	if client.Role == RoleHost {
		if conns := h.hosts[client.UserID]; conns != nil {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.hosts, client.UserID)
			}
		}
	}

	client.CloseSend()
	log.Printf("[Hub] Клиент %s удален (всего клиентов: %d)", client.Identity(), len(h.clients))
}

func (h *Hub) handleBroadcast(envelope sessionEnvelope) {
	sent := 0
	for client := range h.sessions[envelope.SessionID] {
		if client.enqueue(envelope.Payload) {
			sent++
		}
	}
	h.metrics.AddMessageSent(int64(sent))
}

func (h *Hub) handleDirectSend(req directSend) {
	delivered := false
	var targets map[*Client]bool
	if req.participantID != 0 {
		targets = h.participants[req.participantID]
	} else {
		targets = h.hosts[req.hostUserID]
	}
	for client := range targets {
		if client.enqueue(req.message) {
			delivered = true
		}
	}
	if delivered {
		h.metrics.AddMessageSent(1)
	}
	req.delivered <- delivered
}

// cleanupInactiveClients отключает клиентов без активности дольше таймаута.
// Ping/pong обычно ловит обрывы раньше, это страховка от зависших соединений.
func (h *Hub) cleanupInactiveClients() {
	cutoff := time.Now().Add(-inactivityTimeout)
	removed := int64(0)
	for client := range h.clients {
		if client.LastActivity().Before(cutoff) {
			log.Printf("[Hub] Клиент %s неактивен с %v, удаляю", client.Identity(), client.LastActivity())
			h.handleUnregister(client)
			removed++
		}
	}
	if removed > 0 {
		h.metrics.AddInactiveClientsRemoved(removed)
	}
	h.metrics.UpdateLastCleanupTime()
}

func (h *Hub) closeAllClients() {
	for client := range h.clients {
		client.CloseSend()
	}
	h.clients = make(map[*Client]bool)
	h.sessions = make(map[uint]map[*Client]bool)
	h.participants = make(map[uint]map[*Client]bool)
	h.hosts = make(map[uint]map[*Client]bool)
	log.Printf("[Hub] Все клиенты отключены")
}

// runPubSubRelay подписывается на канал событий и доигрывает локально
// сообщения, опубликованные другими инстансами
func (h *Hub) runPubSubRelay() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := h.pubsub.Subscribe(ctx, sessionEventsChannel)
	if err != nil {
		log.Printf("[Hub] Не удалось подписаться на канал событий: %v", err)
		return
	}

	for {
		select {
		case raw, ok := <-messages:
			if !ok {
				return
			}
			var envelope sessionEnvelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				log.Printf("[Hub] Некорректное сообщение из pub/sub: %v", err)
				continue
			}
			// Свои сообщения уже доставлены локально
			if envelope.SenderID == h.instanceID {
				continue
			}
			select {
			case h.broadcastCh <- envelope:
			case <-h.done:
				return
			}
		case <-h.done:
			return
		}
	}
}

// Register ставит клиента в очередь на регистрацию
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister ставит клиента в очередь на удаление
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToSession отправляет сообщение всем клиентам сессии на этом
// инстансе и публикует его для остальных инстансов
func (h *Hub) BroadcastToSession(sessionID uint, message []byte) {
	envelope := sessionEnvelope{
		SenderID:  h.instanceID,
		SessionID: sessionID,
		Payload:   message,
	}

	select {
	case h.broadcastCh <- envelope:
	case <-h.done:
		return
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[Hub] Ошибка сериализации envelope: %v", err)
		return
	}
	if err := h.pubsub.Publish(sessionEventsChannel, raw); err != nil {
		log.Printf("[Hub] Ошибка публикации в pub/sub: %v", err)
	}
}

// SendToParticipant отправляет сообщение всем соединениям участника
func (h *Hub) SendToParticipant(participantID uint, message []byte) bool {
	return h.directSend(directSend{participantID: participantID, message: message, delivered: make(chan bool, 1)})
}

// SendToHost отправляет сообщение всем соединениям учителя
func (h *Hub) SendToHost(userID uint, message []byte) bool {
	return h.directSend(directSend{hostUserID: userID, message: message, delivered: make(chan bool, 1)})
}

func (h *Hub) directSend(req directSend) bool {
	select {
	case h.sendCh <- req:
	case <-h.done:
		return false
	}
	select {
	case delivered := <-req.delivered:
		return delivered
	case <-time.After(writeWait):
		return false
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.countCh <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// GetMetrics возвращает счетчики хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	return h.metrics.GetAllMetrics()
}

// Close останавливает хаб и закрывает все соединения
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		if err := h.pubsub.Close(); err != nil {
			log.Printf("[Hub] Ошибка закрытия pub/sub: %v", err)
		}
		log.Printf("[Hub] Остановлен")
	})
}
