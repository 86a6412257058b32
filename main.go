package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cpusmsng/vercajch/cmd"
	"github.com/cpusmsng/vercajch/internal/core/container"
	"github.com/cpusmsng/vercajch/internal/core/logger"
	"github.com/cpusmsng/vercajch/internal/core/routes"
	"github.com/cpusmsng/vercajch/internal/database"
	"github.com/cpusmsng/vercajch/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, falling back to system environment variables.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subcommands (migrate) run and exit before the server boots
	if len(os.Args) > 1 {
		cmd.Execute(ctx)
		return
	}

	appLogger := logger.NewLogger()
	defer appLogger.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := database.NewPostgresConnection(dbURL)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer db.Close()

	appContainer := container.NewAppContainer(db, appLogger)

	go appContainer.ExpirySweeper.Start(ctx)

	router := gin.Default()
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.TimeoutMiddleware(30 * time.Second))

	routes.RegisterUtilityRoutes(router)
	routes.RegisterPublicRoutes(router, appContainer)
	routes.RegisterProtectedRoutes(router, appContainer)

	middleware.UpdateHealthStatus("ok")

	if err := router.Run(os.Getenv("APP_HOST")); err != nil {
		panic(err)
	}
}
