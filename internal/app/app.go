package app

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"attendbot/internal/calendar"
	"attendbot/internal/config"
	"attendbot/internal/coordinator"
	"attendbot/internal/db"
	"attendbot/internal/geo"
	httpserver "attendbot/internal/http"
	"attendbot/internal/http/handlers"
	"attendbot/internal/http/middleware"
	"attendbot/internal/notify"
	"attendbot/internal/redisstore"
	"attendbot/internal/repository"
	"attendbot/internal/service"
	"attendbot/internal/ws"
)

// App wires the attendance service dependency graph.
type App struct {
	server      *httpserver.Server
	coord       *coordinator.Coordinator
	reminders   *service.ReminderScheduler
	pool        *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	redisClient, err := redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		pool.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		pool.Close()
		redisClient.Close()
		return nil, err
	}
	gate := calendar.NewGate(loc, cfg.WorkDays())
	schedule := calendar.NewSchedule(gate, cfg.WorkStart(), cfg.WorkEnd(), cfg.Schedule.GraceMinutes)

	sessionRepo := repository.NewSessionRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	adminLogRepo := repository.NewAdminLogRepository(pool)

	presence := redisstore.NewPresenceStore(redisClient, cfg.PresenceTTL())
	heartbeats := redisstore.NewHeartbeatStore(redisClient)
	coord := coordinator.New(uuid.NewString(), pool, heartbeats, logger)

	feed := ws.NewHub(logger)

	manager := service.NewManager(
		sessionRepo,
		gate,
		schedule,
		geo.Coordinates{Latitude: cfg.School.Latitude, Longitude: cfg.School.Longitude},
		cfg.School.RadiusMeters,
		coord,
		presence,
		feed,
		logger,
	)
	reporting := service.NewReporting(sessionRepo, teacherRepo, adminLogRepo, gate, logger)
	registry := service.NewRegistry(teacherRepo, cfg, logger)
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())

	var reminders *service.ReminderScheduler
	if cfg.Notify.WebhookURL != "" {
		reminders = service.NewReminderScheduler(
			gate,
			schedule,
			sessionRepo,
			notify.NewWebhook(cfg.Notify.WebhookURL),
			service.ReminderOffsets{
				MorningBefore:  cfg.Notify.MorningBefore,
				LateAfter:      cfg.Notify.LateAfter,
				CheckoutBefore: cfg.Notify.CheckoutBefore,
				ForgottenAfter: cfg.Notify.ForgottenAfter,
			},
			logger,
		)
	} else {
		logger.Info("reminder webhook not configured, scheduler disabled")
	}

	attendanceHandler := handlers.NewAttendanceHandler(manager, logger)
	registryHandler := handlers.NewRegistryHandler(registry, tokens, cfg, logger)
	reportHandler := handlers.NewReportHandler(reporting, coord, logger)

	routes := httpserver.Routes{
		CheckIn:     attendanceHandler.HandleCheckIn,
		CheckOut:    attendanceHandler.HandleCheckOut,
		Register:    registryHandler.HandleRegister,
		Preferences: registryHandler.HandlePreferences,
		IssueToken:  registryHandler.HandleIssueToken,
		TodayStatus: handlers.NewTodayStatusHandler(reporting),
		History:     handlers.NewHistoryHandler(reporting),
		DailyReport: reportHandler.HandleDailyReport,
		Stats:       reportHandler.HandleStats,
		Present:     handlers.NewPresentHandler(presence, reporting),
		ExportCSV:   reportHandler.HandleExportCSV,
		AdminLogs:   reportHandler.HandleAdminLogs,
		Instances:   reportHandler.HandleInstances,
		Feed:        feed.HandleFeed,
		Health:      handlers.NewHealthHandler(coord),
		Ready:       handlers.NewReadyHandler(coord),
	}

	router := httpserver.NewRouter(
		routes,
		middleware.RequireBotKey(cfg.Auth.BotAPIKeyHash),
		middleware.RequireAuth(tokens),
		middleware.RequireAdmin(),
	)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		coord:       coord,
		reminders:   reminders,
		pool:        pool,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the heartbeat, the reminder scheduler and the HTTP server,
// blocking until the context ends.
func (a *App) Run(ctx context.Context) error {
	go a.coord.Run(ctx)
	if a.reminders != nil {
		go a.reminders.Run(ctx)
	}
	return a.server.Run(ctx)
}

// BeginDrain flips the readiness gate ahead of shutdown.
func (a *App) BeginDrain() {
	a.coord.BeginDrain()
}

// Close releases resources.
func (a *App) Close() {
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
