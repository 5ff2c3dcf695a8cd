// Command changeadmin replaces the bootstrap admin name, email or password.
//
// It reads the same store settings as the API. With the file store it must run while the
// API is stopped; the users file lock enforces that.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/config"
	"github.com/seprediction/backend/internal/logger"
	"github.com/seprediction/backend/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadStore()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	fmt.Println(rule)
	fmt.Println("SE Prediction - Change Admin Credentials")
	fmt.Println(rule)
	fmt.Println()

	store, closeStore, err := openAdminStore(cfg)
	if err != nil {
		logger.Logger.Error("Failed to open user store", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	err = changeAdmin(ctx, store, service.NewPasswordHasher(cfg.BcryptCost), newPrompter(os.Stdin, os.Stdout), os.Stdout)
	cancel()
	closeStore()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

// openAdminStore opens the credential store selected by STORE_DRIVER
func openAdminStore(cfg *config.Config) (adminStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMySQL:
		db, err := sql.Open("mysql", cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return repositories.NewUserRepository(db), func() { db.Close() }, nil

	case config.StoreDriverFile:
		lock, err := repositories.AcquireFileLock(cfg.UsersFile)
		if err != nil {
			return nil, nil, fmt.Errorf("%w (stop the API before changing admin credentials)", err)
		}
		repo, err := repositories.NewUserFileRepository(cfg.UsersFile)
		if err != nil {
			lock.Release()
			return nil, nil, err
		}
		return repo, func() { lock.Release() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
