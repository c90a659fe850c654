package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/classquiz-api/internal/service"
	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
	"github.com/yourusername/classquiz-api/internal/websocket"
	"github.com/yourusername/classquiz-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsHub          websocket.HubInterface
	wsManager      *websocket.Manager
	sessionManager *service.SessionManager
	jwtService     *auth.JWTService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub websocket.HubInterface,
	wsManager *websocket.Manager,
	sessionManager *service.SessionManager,
	jwtService *auth.JWTService,
) *WSHandler {
	handler := &WSHandler{
		wsHub:          wsHub,
		wsManager:      wsManager,
		sessionManager: sessionManager,
		jwtService:     jwtService,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Пустой Origin - не браузерный клиент (мобильное приложение, curl и т.д.)
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		allowedOrigins := []string{
			"https://classquiz.vercel.app",
			"http://localhost:5173",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация - одноразовый короткоживущий тикет в query (?ticket=...),
// выданный при входе по PIN (ученик) или запрошенный отдельно (учитель).
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ticket := c.Query("ticket")
	// НЕ логируем тикет - это секретные данные аутентификации

	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upgrade: %v", err)})
		return
	}

	client := websocket.NewClient(h.wsHub, conn, claims.Role, claims.UserID, claims.ParticipantID)
	client.SetSessionID(claims.SessionID)

	log.Printf("WebSocket: соединение установлено: %s, сессия %d", client.Identity(), claims.SessionID)

	// Запускаем прослушивание сообщений
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	// Участник присылает ответ на текущий вопрос
	h.wsManager.RegisterHandler(websocket.ANSWER_SUBMIT, func(data json.RawMessage, client *websocket.Client) error {
		var answerEvent struct {
			QuestionID uint   `json:"question_id"`
			Answer     string `json:"answer"`
		}
		// Ошибка парсинга - фатальна для этого сообщения
		if err := json.Unmarshal(data, &answerEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", websocket.ANSWER_SUBMIT, err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse answer:submit event")
			return err
		}

		if client.Role != websocket.RolePlayer || client.ParticipantID == 0 {
			h.wsManager.SendErrorToClient(client, "forbidden", "Only participants can submit answers")
			return nil
		}

		// Результат отправляется участнику внутри SubmitAnswer; устаревшие ответы
		// (вопрос уже сменился) не считаются ошибкой протокола
		if _, err := h.sessionManager.SubmitAnswer(client.SessionID(), client.ParticipantID, answerEvent.QuestionID, answerEvent.Answer); err != nil {
			log.Printf("[WSHandler] Ошибка обработки ответа участника %d на вопрос %d: %v", client.ParticipantID, answerEvent.QuestionID, err)
			h.wsManager.SendErrorToClient(client, "answer_error", err.Error())
		}
		return nil // Соединение не закрываем
	})

	// Клиент просит полный снимок состояния после переподключения
	h.wsManager.RegisterHandler(websocket.SESSION_RESYNC, func(data json.RawMessage, client *websocket.Client) error {
		snapshot, err := h.sessionManager.GetCurrentState(client.SessionID())
		if err != nil {
			log.Printf("[WSHandler] Ошибка ресинхронизации для %s: %v", client.Identity(), err)
			h.wsManager.SendErrorToClient(client, "resync_error", err.Error())
			return nil
		}

		if err := h.wsManager.SendEventToClient(client, sessionmanager.EventSessionState, snapshot); err != nil {
			log.Printf("[WSHandler] WARNING: Ошибка отправки снапшота клиенту %s: %v", client.Identity(), err)
		}
		return nil
	})

	// Команды учителя: запуск, следующий вопрос, завершение
	h.registerHostCommand(websocket.SESSION_START, h.sessionManager.StartSession)
	h.registerHostCommand(websocket.SESSION_ADVANCE, h.sessionManager.AdvanceQuestion)
	h.registerHostCommand(websocket.SESSION_FINISH, h.sessionManager.FinishSession)
}

// registerHostCommand регистрирует обработчик команды перехода состояния от хоста
func (h *WSHandler) registerHostCommand(
	eventType string,
	transition func(sessionID, hostID uint, expectedVersion int) (*sessionmanager.StateSnapshot, error),
) {
	h.wsManager.RegisterHandler(eventType, func(data json.RawMessage, client *websocket.Client) error {
		var cmd struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", eventType, err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", fmt.Sprintf("Failed to parse %s event", eventType))
			return err
		}

		if client.Role != websocket.RoleHost {
			h.wsManager.SendErrorToClient(client, "forbidden", "Only the host can control the session")
			return nil
		}

		// Снапшот нового состояния уйдет всем через broadcast внутри перехода
		if _, err := transition(client.SessionID(), client.UserID, cmd.Version); err != nil {
			log.Printf("[WSHandler] Ошибка команды %s от %s: %v", eventType, client.Identity(), err)
			h.wsManager.SendErrorToClient(client, "transition_error", err.Error())
		}
		return nil
	})
}
