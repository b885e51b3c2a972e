package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ValeZask/EduDiaryGit/internal/auth"
	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/config"
	"github.com/ValeZask/EduDiaryGit/internal/handler"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/push"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
	"github.com/ValeZask/EduDiaryGit/internal/school"
	"github.com/ValeZask/EduDiaryGit/internal/startup"
	"github.com/ValeZask/EduDiaryGit/internal/storage"
	"github.com/ValeZask/EduDiaryGit/internal/storage/memory"
	"github.com/ValeZask/EduDiaryGit/internal/ws"
	"github.com/ValeZask/EduDiaryGit/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory token store")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = migrations.Apply(migrateCtx, pool)
	migrateCancel()
	if err != nil {
		logger.Errorf("migrations: %v", err)
		os.Exit(1)
	}
	logger.Info("database connected, migrations applied")
	if *migrate && !*dev {
		return
	}

	// В dev-режиме Redis не нужен: токены живут в памяти процесса.
	var tokens storage.TokenStore
	if *dev {
		tokens = memory.New()
	} else {
		tokens = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
	}
	defer tokens.Close()

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		// Вне production допускаем случайный секрет: токены живут до рестарта.
		jwtSecret = fmt.Sprintf("dev-secret-%d", time.Now().UnixNano())
		logger.Info("JWT_SECRET not set, using ephemeral secret (tokens expire on restart)")
	}
	authMgr := auth.NewManager(jwtSecret, cfg.JWT.AccessTTL)

	userRepo := repository.NewUserRepository(pool)
	schoolRepo := repository.NewSchoolRepository(pool)
	newsRepo := repository.NewNewsRepository(pool)
	achRepo := repository.NewAchievementRepository(pool)
	projRepo := repository.NewProjectRepository(pool)
	pushRepo := repository.NewPushRepository(pool)

	vapid := &push.VAPIDKeys{PublicKey: cfg.PushVAPIDPublicKey, PrivateKey: cfg.PushVAPIDPrivateKey}
	pusher := push.NewSender(pushRepo, vapid, "mailto:admin@edudiary.local")

	hub := ws.NewHub(cfg.MaxWSConnections, pusher)
	chatSvc := chat.NewService(repository.NewChatStore(pool), hub)
	hub.SetChatService(chatSvc)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	visibility := school.NewVisibility(userRepo)

	authH := handler.NewAuthHandler(userRepo, tokens, authMgr, cfg.LoginRateLimit, cfg.LoginRateWindow)
	userH := handler.NewUserHandler(userRepo)
	chatH := handler.NewChatHandler(chatSvc)
	diaryH := handler.NewDiaryHandler(schoolRepo, userRepo, visibility)
	newsH := handler.NewNewsHandler(newsRepo)
	achH := handler.NewAchievementHandler(achRepo, userRepo, visibility)
	projH := handler.NewProjectHandler(projRepo)
	pushH := handler.NewPushHandler(pushRepo, cfg.PushVAPIDPublicKey)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.Get("/api/push/vapid-public-key", pushH.VAPIDPublicKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(authMgr, tokens))

		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/auth/me", authH.Me)

		r.Get("/api/users/search", userH.Search)
		r.Get("/api/users/me/profile", userH.Profile)
		r.Put("/api/users/me/profile", userH.UpdateProfile)
		r.Get("/api/users/me/children", userH.Children)
		r.Post("/api/users/me/children", userH.LinkChild)
		r.Get("/api/users/{userID}", userH.GetByID)

		r.Post("/api/chats", chatH.CreateChat)
		r.Get("/api/chats", chatH.ListChats)
		r.Get("/api/chats/{chatID}/messages", chatH.ListMessages)
		r.Post("/api/chats/{chatID}/messages", chatH.SendMessage)
		r.Post("/api/chats/{chatID}/read", chatH.MarkAllRead)
		r.Get("/api/chats/{chatID}/unread", chatH.UnreadCount)
		r.Get("/api/chats/{chatID}/participants", chatH.Participants)
		r.Post("/api/chats/{chatID}/participants", chatH.AddParticipants)

		r.Get("/api/classes/{classID}/schedule", diaryH.Schedule)
		r.Get("/api/schedule/my", diaryH.MySchedule)
		r.Get("/api/students/{studentID}/grades", diaryH.Grades)
		r.Get("/api/students/{studentID}/achievements", achH.ForStudent)

		r.Get("/api/news", newsH.List)
		r.Get("/api/news/categories", newsH.Categories)
		r.Get("/api/news/{newsID}", newsH.GetByID)

		r.Get("/api/projects", projH.List)
		r.Get("/api/projects/{projectID}", projH.GetByID)
		r.Get("/api/events", projH.Events)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)

		r.Get("/ws", wsH.ServeWS)

		// Выставление оценок, публикации и проекты — только учителям.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleTeacher))
			r.Post("/api/grades", diaryH.CreateGrade)
			r.Post("/api/news", newsH.Create)
			r.Delete("/api/news/{newsID}", newsH.Delete)
			r.Post("/api/achievements", achH.Create)
			r.Post("/api/projects", projH.Create)
			r.Put("/api/projects/{projectID}/status", projH.UpdateStatus)
			r.Post("/api/projects/{projectID}/tasks", projH.CreateTask)
			r.Put("/api/tasks/{taskID}/status", projH.UpdateTaskStatus)
			r.Post("/api/events", projH.CreateEvent)
		})
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Flush()
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "edudiary"
		password = "edudiary_secret"
		database = "edudiary"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
