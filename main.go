package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/godjvu/config"
	database "github.com/drummonds/godjvu/database"
	"github.com/drummonds/godjvu/djvu"
	engine "github.com/drummonds/godjvu/engine"
	"github.com/drummonds/godjvu/renderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	djvu.Logger = Logger
	renderer.Logger = Logger
}

// newEcho creates the echo instance with the JSON error handling and middleware the API uses
func newEcho(serverConfig config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	if serverConfig.MaxUploadMB > 0 {
		// multipart overhead on top of the file itself
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", serverConfig.MaxUploadMB+1)))
	}
	return e
}

// @title godjvu API
// @version 1.0
// @description Document rendering service for DjVu and PDF files
// @description Catalogues documents, reports page sizes and renders pages to PNG or raw RGBA8

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @tag.name Documents
// @tag.description Document catalog operations

// @tag.name Pages
// @tag.description Page dimensions, rendering and text

// @tag.name Jobs
// @tag.description Background export jobs

// @tag.name System
// @tag.description Service health check

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Catalog will be destroyed on exit")
		fmt.Println("• No persistent data storage")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Unable to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	e := newEcho(serverConfig)
	serverHandler := engine.ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Sessions:     engine.NewSessionStore(serverConfig.ContextConfig()),
	}
	defer serverHandler.Sessions.CloseAll()

	if err := serverHandler.StartupChecks(); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	Logger.Info("Startup checks complete")

	schedules := serverHandler.InitializeSchedules()
	defer schedules.Stop()

	serverHandler.RegisterRoutes()

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- startServer(e, &serverConfig)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			Logger.Error("Failed to start server", "error", err)
		}
	case <-ctx.Done():
		Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			Logger.Error("Server shutdown failed", "error", err)
		}
	}
}

// startServer tries the configured port and the next few after it if they are in use
func startServer(e *echo.Echo, serverConfig *config.ServerConfig) error {
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		err := e.Start(addr)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			return nil
		case isAddressInUse(err):
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)
		default:
			return err
		}
	}

	return fmt.Errorf("no free port between %s and %s", startPort, serverConfig.ListenAddrPort)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "address already in use")
}
