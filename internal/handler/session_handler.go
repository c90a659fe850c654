package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
	"github.com/yourusername/classquiz-api/internal/handler/dto"
	apperrors "github.com/yourusername/classquiz-api/internal/pkg/errors"
	"github.com/yourusername/classquiz-api/internal/service"
	"github.com/yourusername/classquiz-api/internal/service/sessionmanager"
	"github.com/yourusername/classquiz-api/pkg/auth"
)

// SessionHandler обрабатывает запросы жизненного цикла сессий
type SessionHandler struct {
	sessionManager *service.SessionManager
	sessionService *service.SessionService
	resultService  *service.ResultService
	jwtService     *auth.JWTService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(
	sessionManager *service.SessionManager,
	sessionService *service.SessionService,
	resultService *service.ResultService,
	jwtService *auth.JWTService,
) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
		sessionService: sessionService,
		resultService:  resultService,
		jwtService:     jwtService,
	}
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	QuizID     uint               `json:"quiz_id" binding:"required"`
	GameMode   string             `json:"game_mode" binding:"omitempty,oneof=classic survival teams hangman"`
	ModeConfig *entity.ModeConfig `json:"mode_config,omitempty"`
}

// CreateSession обрабатывает запрос на создание сессии (хост)
func (h *SessionHandler) CreateSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gameMode := req.GameMode
	if gameMode == "" {
		gameMode = entity.GameModeClassic
	}

	session, err := h.sessionManager.CreateSession(hostID, req.QuizID, gameMode, req.ModeConfig)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSessionResponse(session))
}

// ListSessions возвращает сессии текущего хоста
func (h *SessionHandler) ListSessions(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	sessions, err := h.sessionService.ListByHost(hostID, limit, offset)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": dto.NewListSessionResponse(sessions),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetSession возвращает информацию о сессии
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	session, err := h.sessionService.GetByID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session))
}

// DeleteSession удаляет завершенную сессию вместе с ее данными
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	hostID := c.MustGet("user_id").(uint)

	if err := h.sessionService.Delete(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// GetParticipants возвращает список участников сессии
func (h *SessionHandler) GetParticipants(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	participants, err := h.sessionService.GetParticipants(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participants": dto.NewListParticipantResponse(participants),
		"total":        len(participants),
	})
}

// JoinRequest представляет запрос ученика на вход по PIN
type JoinRequest struct {
	Pin           string `json:"pin" binding:"required,len=6,numeric"`
	Nickname      string `json:"nickname" binding:"required"`
	RosterEntryID *uint  `json:"roster_entry_id,omitempty"`
}

// Join обрабатывает вход ученика в сессию по PIN-коду.
// Аутентификация не требуется: PIN и есть пропуск.
func (h *SessionHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, session, err := h.sessionService.JoinByPin(req.Pin, req.Nickname, req.RosterEntryID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	// Выдаем короткоживущий WS-тикет сразу при входе, чтобы клиент мог
	// подключиться к WebSocket без второго запроса
	ticket, err := h.jwtService.GenerateParticipantWSTicket(participant.ID, session.ID)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка генерации WS-тикета для участника %d: %v", participant.ID, err)
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.JoinResponse{
		Participant: dto.NewParticipantResponse(participant),
		Session:     dto.NewSessionResponse(session),
		WSTicket:    ticket,
	})
}

// IssueHostTicket выдает хосту WS-тикет для подключения к сессии
func (h *SessionHandler) IssueHostTicket(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	hostID := c.MustGet("user_id").(uint)

	session, err := h.sessionService.GetByID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if session.HostID != hostID {
		h.handleSessionError(c, apperrors.ErrForbidden)
		return
	}

	ticket, err := h.jwtService.GenerateHostWSTicket(hostID, sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ws_ticket": ticket})
}

// TransitionRequest несет версию сессии, которую видел вызывающий.
// Переход принимается только против актуальной версии (optimistic locking).
type TransitionRequest struct {
	Version int `json:"version"`
}

// StartSession запускает сессию: waiting -> active, первый вопрос
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.handleTransition(c, h.sessionManager.StartSession)
}

// AdvanceQuestion переводит сессию к следующему вопросу
func (h *SessionHandler) AdvanceQuestion(c *gin.Context) {
	h.handleTransition(c, h.sessionManager.AdvanceQuestion)
}

// FinishSession досрочно завершает сессию
func (h *SessionHandler) FinishSession(c *gin.Context) {
	h.handleTransition(c, h.sessionManager.FinishSession)
}

// handleTransition - общий код переходов состояния сессии
func (h *SessionHandler) handleTransition(
	c *gin.Context,
	transition func(sessionID, hostID uint, expectedVersion int) (*sessionmanager.StateSnapshot, error),
) {
	sessionID := c.MustGet("sessionID").(uint)
	hostID := c.MustGet("user_id").(uint)

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := transition(sessionID, hostID, req.Version)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetSessionState возвращает авторитетный снапшот состояния сессии.
// Используется клиентами для ресинхронизации после переподключения.
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	snapshot, err := h.sessionManager.GetCurrentState(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetLeaderboard возвращает таблицу результатов сессии
func (h *SessionHandler) GetLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	results, err := h.resultService.GetSessionResults(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewLeaderboardResponse(results))
}

// GetParticipantReport возвращает детальный разбор ответов одного участника
func (h *SessionHandler) GetParticipantReport(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	participantID := c.MustGet("participantID").(uint)

	report, err := h.resultService.GetParticipantReport(sessionID, participantID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ExportSessionReport экспортирует отчет сессии в CSV или Excel формате
// GET /api/sessions/:id/report?format=csv|xlsx
func (h *SessionHandler) ExportSessionReport(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	format := c.DefaultQuery("format", "csv")

	report, err := h.resultService.GetSessionReport(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	filename := fmt.Sprintf("session_%s_report_%s", report.Pin, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, report, filename)
	default:
		h.exportCSV(c, report, filename)
	}
}

// exportCSV экспортирует отчет в CSV с правильным экранированием спецсимволов
func (h *SessionHandler) exportCSV(c *gin.Context, report *service.SessionReport, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(reportHeader(report))

	for _, row := range report.Rows {
		writer.Write(reportRowStrings(report, row))
	}
}

// exportXLSX экспортирует отчет в Excel с использованием StreamWriter
func (h *SessionHandler) exportXLSX(c *gin.Context, report *service.SessionReport, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Отчет"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	header := reportHeader(report)
	headerRow := make([]interface{}, len(header))
	for i, hcell := range header {
		headerRow[i] = hcell
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	for i, row := range report.Rows {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		values := reportRowStrings(report, row)
		xlsxRow := make([]interface{}, len(values))
		for j, v := range values {
			xlsxRow[j] = v
		}
		if err := sw.SetRow(cell, xlsxRow); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка записи Excel в response: %v", err)
	}
}

// reportHeader собирает строку заголовков: фиксированные колонки + по одной
// колонке на каждый вопрос викторины
func reportHeader(report *service.SessionReport) []string {
	header := []string{"Место", "Никнейм", "Команда", "Очки", "Макс. серия"}
	for i := range report.Questions {
		header = append(header, fmt.Sprintf("Вопрос %d", i+1))
	}
	return header
}

// reportRowStrings собирает одну строку отчета: ответ на каждый вопрос
// помечается +очки или пустой клеткой для пропущенных вопросов
func reportRowStrings(report *service.SessionReport, row service.ParticipantReport) []string {
	rank := 0
	for i := range report.Rows {
		if report.Rows[i].ParticipantID == row.ParticipantID {
			rank = i + 1
			break
		}
	}

	values := []string{
		strconv.Itoa(rank),
		sanitizeForExcel(row.Nickname),
		sanitizeForExcel(row.Team),
		strconv.Itoa(row.TotalPoints),
		strconv.Itoa(row.MaxStreak),
	}
	for _, a := range row.Answers {
		switch {
		case a.AnswerText == "" && !a.IsCorrect && a.PointsAwarded == 0 && a.ResponseTimeMs == 0:
			values = append(values, "") // Вопрос пропущен
		case a.IsCorrect:
			values = append(values, fmt.Sprintf("+%d (%.1fс)", a.PointsAwarded, float64(a.ResponseTimeMs)/1000))
		default:
			values = append(values, fmt.Sprintf("✗ %s", sanitizeForExcel(a.AnswerText)))
		}
	}
	return values
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// handleSessionError обрабатывает ошибки от сервисов сессий и отправляет соответствующий HTTP ответ
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "version_conflict"})
	case errors.Is(err, repository.ErrSessionNotWaiting), errors.Is(err, repository.ErrSessionNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
