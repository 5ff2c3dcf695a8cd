package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/robfig/cron/v3"
	_ "github.com/seprediction/backend/docs"
	authmw "github.com/seprediction/backend/internal/auth/middleware"
	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/config"
	"github.com/seprediction/backend/internal/handlers"
	"github.com/seprediction/backend/internal/job"
	"github.com/seprediction/backend/internal/logger"
	loggerMiddleware "github.com/seprediction/backend/internal/logger/middleware"
	sharedMiddleware "github.com/seprediction/backend/internal/middlewares"
	"github.com/seprediction/backend/internal/models"
	"github.com/seprediction/backend/internal/repositories"
	"github.com/seprediction/backend/internal/services"
	"github.com/seprediction/backend/migrations"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// userStore is the credential store contract shared by the MySQL and file implementations
type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	UpdateStatus(ctx context.Context, email string, from, to models.Status) error
	UpdatePasswordHash(ctx context.Context, email, oldHash, newHash string) error
	Delete(ctx context.Context, email string) (*models.User, error)
	ListNonAdmin(ctx context.Context) ([]models.User, error)
	CountAdmins(ctx context.Context) (int, error)
}

// @title SE Prediction Auth API
// @version 1.0
// @description Login, registration, session and user approval endpoints

// @contact.name API Support

// @host localhost:8080
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting SE Prediction Auth Service", zap.String("store", cfg.StoreDriver), zap.String("sessions", cfg.Session.Store))

	// Open the credential store
	users, closeUsers, err := openUserStore(cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to open user store", zap.Error(err))
	}
	defer closeUsers()

	hasher := service.NewPasswordHasher(cfg.BcryptCost)

	// Make sure an admin can log in on a fresh install
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = services.SeedAdmin(seedCtx, users, hasher, services.AdminCredentials{
		Name:     cfg.Admin.Name,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	}, logger.Logger)
	seedCancel()
	if err != nil {
		logger.Logger.Fatal("Failed to seed admin account", zap.Error(err))
	}

	// Open the session store
	sessions, closeSessions, err := openSessionStore(cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to open session store", zap.Error(err))
	}
	defer closeSessions()

	// Initialize services
	tokenGenerator := service.NewTokenGenerator(cfg.Session.Secret)
	approval := services.NewApprovalMachine()
	sessionService := services.NewSessionService(sessions, users, tokenGenerator, cfg.Session.PersistentTTL, cfg.Session.EphemeralTTL, logger.Logger)
	authService := services.NewAuthService(users, sessionService, hasher, approval, logger.Logger)
	adminService := services.NewAdminService(users, sessionService, approval, logger.Logger)

	// Initialize handlers
	cookies := authmw.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}
	loginLimiter := httprate.LimitByIP(cfg.Server.LoginRateLimit, time.Minute)
	authHandler := handlers.NewAuthHandler(authService, cookies, loginLimiter, logger.Logger)
	adminHandler := handlers.NewAdminHandler(adminService, logger.Logger)
	userHandler := handlers.NewUserHandler(logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(1 * 1024 * 1024)) // 1MB

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Group(func(r chi.Router) {
		r.Use(authmw.SessionMiddleware(sessionService, cookies, logger.Logger))
		authHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r)
		userHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// openUserStore opens the credential store selected by STORE_DRIVER
func openUserStore(cfg *config.Config) (userStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMySQL:
		db, err := connectDB(cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewUserRepository(db), func() { db.Close() }, nil

	case config.StoreDriverFile:
		lock, err := repositories.AcquireFileLock(cfg.UsersFile)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repositories.NewUserFileRepository(cfg.UsersFile)
		if err != nil {
			lock.Release()
			return nil, nil, err
		}
		logger.Logger.Info("Using JSON file user store", zap.String("path", cfg.UsersFile))
		return repo, func() {
			if err := lock.Release(); err != nil {
				logger.Logger.Warn("Failed to release users file lock", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openSessionStore opens the session store selected by SESSION_STORE.
// The file and in-memory stores get a cron job that sweeps expired sessions.
func openSessionStore(cfg *config.Config) (services.SessionRepository, func(), error) {
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr(), err)
		}

		// The per-user index lives as long as the longest session it can reference
		return repositories.NewSessionRedisRepository(client, cfg.Session.PersistentTTL), func() { client.Close() }, nil

	case config.SessionStoreFile:
		lock, err := repositories.AcquireFileLock(cfg.Session.File)
		if err != nil {
			return nil, nil, err
		}
		store, err := repositories.NewSessionFileRepository(cfg.Session.File)
		if err != nil {
			lock.Release()
			return nil, nil, err
		}
		logger.Logger.Info("Using JSON file session store", zap.String("path", cfg.Session.File))

		stopSweep, err := scheduleSessionSweep(store)
		if err != nil {
			lock.Release()
			return nil, nil, err
		}
		return store, func() {
			stopSweep()
			if err := lock.Release(); err != nil {
				logger.Logger.Warn("Failed to release sessions file lock", zap.Error(err))
			}
		}, nil

	case config.SessionStoreMemory:
		logger.Logger.Warn("In-memory sessions are lost on restart, including remembered logins")
		store := repositories.NewSessionMemoryRepository()

		stopSweep, err := scheduleSessionSweep(store)
		if err != nil {
			return nil, nil, err
		}
		return store, stopSweep, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// scheduleSessionSweep removes expired sessions every 10 minutes until the returned stop func is called
func scheduleSessionSweep(store job.ExpiredSessionDeleter) (func(), error) {
	c := cron.New()
	if _, err := c.AddJob("@every 10m", job.NewSessionSweepJob(store, logger.Logger)); err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	c.Start()

	return func() { <-c.Stop().Done() }, nil
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations applies the embedded schema migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
