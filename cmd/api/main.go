package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/classquiz-api/internal/config"
	"github.com/yourusername/classquiz-api/internal/handler"
	"github.com/yourusername/classquiz-api/internal/middleware"
	pgRepo "github.com/yourusername/classquiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/classquiz-api/internal/repository/redis"
	"github.com/yourusername/classquiz-api/internal/service"
	ws "github.com/yourusername/classquiz-api/internal/websocket"
	"github.com/yourusername/classquiz-api/pkg/auth"
	"github.com/yourusername/classquiz-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	sessionRepo := pgRepo.NewSessionRepo(db)
	quizRepo := pgRepo.NewQuizRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	participantRepo := pgRepo.NewParticipantRepo(db)
	answerRepo := pgRepo.NewAnswerRepo(db)
	scoreRepo := pgRepo.NewScoreRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем JWTService
	jwtService, err := auth.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// --- Инициализация WebSocket ---
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{} // Провайдер по умолчанию

	// Redis PubSub нужен только когда событиям надо расходиться между инстансами
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		redisPubSubClient, errPubSub := database.NewUniversalRedisClient(cfg.Redis)
		if errPubSub != nil {
			log.Printf("Ошибка при инициализации Redis клиента для PubSub: %v. Кластеризация WS будет неактивна.", errPubSub)
		} else {
			redisProvider, errProv := ws.NewRedisPubSub(redisPubSubClient)
			if errProv != nil {
				log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", errProv)
				redisPubSubClient.Close()
			} else {
				log.Println("Redis PubSub провайдер успешно инициализирован")
				pubSubProvider = redisProvider
			}
		}
	}

	wsHub := ws.NewHub(pubSubProvider)
	go wsHub.Run()

	wsManager := ws.NewManager(wsHub)
	// --- Конец инициализации WebSocket ---

	// Инициализируем сервисы
	sessionManager := service.NewSessionManager(
		sessionRepo, quizRepo, questionRepo,
		participantRepo, answerRepo, scoreRepo,
		cacheRepo, wsManager,
	)
	sessionService := service.NewSessionService(sessionRepo, participantRepo, wsManager)
	resultService := service.NewResultService(sessionRepo, participantRepo, answerRepo, scoreRepo, questionRepo)

	// Инициализируем обработчики
	sessionHandler := handler.NewSessionHandler(sessionManager, sessionService, resultService, jwtService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, sessionManager, jwtService)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		// Если используете load balancer, замените nil на []string{"IP_БАЛАНСИРОВЩИКА"}
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://classquiz.vercel.app", "http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Вход ученика по PIN (публичный, с лимитом против перебора PIN-кодов)
		api.POST("/join", rateLimiter.Limit(middleware.JoinRateLimitConfig()), sessionHandler.Join)

		// Сессии
		sessions := api.Group("/sessions")
		{
			// Маршруты хоста (требуют аутентификации учителя)
			hostSessions := sessions.Group("")
			hostSessions.Use(authMiddleware.RequireAuth())
			{
				hostSessions.POST("", sessionHandler.CreateSession)
				hostSessions.GET("", sessionHandler.ListSessions)
			}

			// Группа маршрутов, требующих sessionID
			sessionWithID := sessions.Group("/:id")
			sessionWithID.Use(middleware.ExtractUintParam("id", "sessionID"))
			{
				// Публичные для участников сессии (знание PIN/ID достаточно,
				// правильные ответы в снапшоты не попадают)
				sessionWithID.GET("", sessionHandler.GetSession)
				sessionWithID.GET("/state", sessionHandler.GetSessionState)
				sessionWithID.GET("/participants", sessionHandler.GetParticipants)
				sessionWithID.GET("/leaderboard", sessionHandler.GetLeaderboard)

				// Маршруты хоста
				hostSessionWithID := sessionWithID.Group("")
				hostSessionWithID.Use(authMiddleware.RequireAuth())
				hostSessionWithID.Use(rateLimiter.Limit(middleware.SessionWriteRateLimitConfig()))
				{
					hostSessionWithID.POST("/start", sessionHandler.StartSession)
					hostSessionWithID.POST("/advance", sessionHandler.AdvanceQuestion)
					hostSessionWithID.POST("/finish", sessionHandler.FinishSession)
					hostSessionWithID.POST("/ws-ticket", sessionHandler.IssueHostTicket)
					hostSessionWithID.DELETE("", sessionHandler.DeleteSession)
					hostSessionWithID.GET("/report", sessionHandler.ExportSessionReport)

					participantReport := hostSessionWithID.Group("/participants/:participantID")
					participantReport.Use(middleware.ExtractUintParam("participantID", "participantID"))
					{
						participantReport.GET("/report", sessionHandler.GetParticipantReport)
					}
				}
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем менеджер сессий и hub (pubsub закрывается внутри hub)
	sessionManager.Shutdown()
	wsHub.Close()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
