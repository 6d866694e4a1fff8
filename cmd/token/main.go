package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/timmy/timesheet/internal/api/middleware"
	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/repository"
)

// token issues a bearer token for an existing user, for operators and local testing.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "timesheet-token",
	})
	logger.SetDefaultLogger(appLogger)

	userID := flag.Uint("user", 0, "ID of the user the token is issued for")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *userID == 0 {
		appLogger.Fatal("Flag -user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if cfg.Auth.JWTSecret == "" {
		appLogger.Fatal(domain.NewDependencyConfigError("auth.jwt_secret is required (set JWT_SECRET)").Error())
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	store := repository.NewStore(db)

	user, err := store.Users.GetByID(context.Background(), uint(*userID))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load user")
	}
	if string(user.Role) != cfg.Auth.RequiredRole {
		appLogger.WithFields(logger.Fields{
			"user_id": user.ID,
			"role":    user.Role,
		}).Warn("User role does not match auth.required_role; the API will reject this token")
	}

	token, err := middleware.GenerateToken(user.ID, string(user.Role), cfg.Auth.JWTSecret, *ttl)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to sign token")
	}

	appLogger.WithFields(logger.Fields{
		"user_id": user.ID,
		"ttl":     ttl.String(),
	}).Info("Token issued")
	fmt.Println(token)
}
