package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту
	writeWait = 10 * time.Second

	// Время ожидания pong-ответа; короткое, чтобы быстро замечать обрывы
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера канала отправки сообщений клиенту
	defaultClientBufferSize = 128

	// Максимальное количество переполнений буфера до отключения клиента
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client является посредником между WebSocket соединением и хабом.
// Один человек может держать несколько соединений (две вкладки, телефон и
// планшет) - каждое соединение получает собственный Client и ConnectionID.
type Client struct {
	// ConnectionID - уникальный ID соединения
	ConnectionID string

	// UserID - ID учителя для роли host, 0 для участников
	UserID uint

	// ParticipantID - ID участника для роли player, 0 для учителя
	ParticipantID uint

	// Role - host или player
	Role string

	hub  HubInterface
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// Флаг закрытия канала send (защита от двойного close)
	sendClosed atomic.Bool

	// ID сессии, к которой привязан клиент
	sessionID atomic.Uint32

	// Время последней активности
	lastActivity atomic.Int64

	// Счетчик переполнений буфера отправки
	bufferWarningCount int32
	bufferWarningMutex sync.Mutex
}

// NewClient создает нового клиента для соединения
func NewClient(hub HubInterface, conn *websocket.Conn, role string, userID, participantID uint) *Client {
	c := &Client{
		ConnectionID:  uuid.New().String(),
		UserID:        userID,
		ParticipantID: participantID,
		Role:          role,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, defaultClientBufferSize),
	}
	c.lastActivity.Store(time.Now().UnixMilli())
	return c
}

// SetSessionID привязывает клиента к сессии
func (c *Client) SetSessionID(sessionID uint) {
	c.sessionID.Store(uint32(sessionID))
}

// SessionID возвращает ID сессии клиента (0, если не привязан)
func (c *Client) SessionID() uint {
	return uint(c.sessionID.Load())
}

// Identity возвращает строку для логов
func (c *Client) Identity() string {
	if c.Role == RoleHost {
		return fmt.Sprintf("host:%d/%s", c.UserID, c.ConnectionID[:8])
	}
	return fmt.Sprintf("player:%d/%s", c.ParticipantID, c.ConnectionID[:8])
}

// StartPumps запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump(messageHandler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("[WebSocket] Read pump остановлен для %s", c.Identity())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity.Store(time.Now().UnixMilli())
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Ошибка чтения от %s: %v", c.Identity(), err)
			}
			break
		}

		c.lastActivity.Store(time.Now().UnixMilli())

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("[WebSocket] Фатальная ошибка обработчика для %s: %v, закрываю соединение", c.Identity(), handlerErr)
			break
		}

		c.resetBufferWarningCount()
	}
}

// safeHandleMessage вызывает обработчик с recover: паника в обработчике
// не должна ронять процесс
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] PANIC в обработчике сообщения от %s: %v\n%s",
				client.Identity(), r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler == nil {
		log.Printf("[WebSocket] Нет обработчика сообщений для %s", client.Identity())
		return nil
	}
	return messageHandler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Ошибка записи для %s: %v", c.Identity(), err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue пытается поставить сообщение в очередь отправки без блокировки.
// При переполнении буфера сообщение отбрасывается (события - снимки,
// клиент догонит по следующему); после maxBufferWarnings подряд клиент
// считается мертвым и отключается.
func (c *Client) enqueue(message []byte) (ok bool) {
	if c.sendClosed.Load() {
		return false
	}
	// CloseSend может закрыть канал между проверкой флага и отправкой;
	// recover превращает эту гонку в обычный отказ доставки
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- message:
		return true
	default:
		warnings := c.incrementBufferWarningCount()
		log.Printf("[WebSocket] Буфер клиента %s переполнен (%d/%d)", c.Identity(), warnings, maxBufferWarnings)
		if warnings >= maxBufferWarnings {
			log.Printf("[WebSocket] Клиент %s не читает, отключаю", c.Identity())
			c.hub.Unregister(c)
		}
		return false
	}
}

func (c *Client) incrementBufferWarningCount() int32 {
	c.bufferWarningMutex.Lock()
	defer c.bufferWarningMutex.Unlock()
	c.bufferWarningCount++
	return c.bufferWarningCount
}

func (c *Client) resetBufferWarningCount() {
	c.bufferWarningMutex.Lock()
	defer c.bufferWarningMutex.Unlock()
	c.bufferWarningCount = 0
}

// LastActivity возвращает время последней активности клиента
func (c *Client) LastActivity() time.Time {
	return time.UnixMilli(c.lastActivity.Load())
}

// CloseSend безопасно закрывает канал отправки (ровно один раз)
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}
