package bootstrap

import (
	"log"

	"github.com/djrag/backend-go/internal/config"
	"github.com/djrag/backend-go/internal/database"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/services"
	"github.com/joho/godotenv"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks   []func() error
	engineProvider *services.EngineProvider
}

// EngineProvider returns the shared RAG engine provider.
func (a *App) EngineProvider() *services.EngineProvider {
	return a.engineProvider
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, database connection and the RAG
// engine provider required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	// Initialize database. DATABASE_URL未配置时进入降级模式，不算启动失败。
	db, err := database.InitDB()
	if err != nil {
		return nil, err
	}
	if db == nil {
		logger.Warn("DATABASE_URL is not set, persistence endpoints are disabled")
	} else {
		logger.Info("Database connected")
		app.cleanupTasks = append(app.cleanupTasks, func() error {
			return database.CloseDB()
		})
	}

	// RAG引擎惰性构造：首个请求触发，失败可重试
	app.engineProvider = services.NewEngineProvider()

	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	SetGlobalApp(app)
	return app, nil
}

// Shutdown releases resources in reverse registration order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("cleanup task failed: %v", err)
		}
	}
}
