package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/drummonds/godjvu/djvu"
	"github.com/drummonds/godjvu/renderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	LogOutput          string // stdout, stderr or file
	ListenAddrIP       string
	ListenAddrPort     string
	DatabaseType       string
	DatabaseHost       string
	DatabasePort       string
	DatabaseUser       string
	DatabasePassword   string `json:"-"`
	DatabaseDbname     string
	DatabaseSslmode    string
	DocumentPath       string // absolute path documents are resolved against
	ExportPath         string // absolute path export jobs write into
	SessionIdleMinutes int
	MaxUploadMB        int
	RenderConfig
}

// RenderConfig selects how documents are opened and rasterised
type RenderConfig struct {
	PDFEngine string
	RenderDPI int
	StrictPDF bool
}

// ContextConfig converts the settings into a document context configuration
func (rc RenderConfig) ContextConfig() djvu.Config {
	return djvu.Config{
		Engine:    rc.PDFEngine,
		DPI:       rc.RenderDPI,
		StrictPDF: rc.StrictPDF,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func loadEnvFiles() {
	// silently ignore missing files
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
}

// SetupRenderer reads the render settings shared by the server, the CLI and
// the C library
func SetupRenderer() RenderConfig {
	rc := RenderConfig{
		PDFEngine: getEnv("PDF_ENGINE", "pdfium"),
		RenderDPI: getEnvInt("RENDER_DPI", renderer.DefaultDPI),
		StrictPDF: getEnvBool("PDF_STRICT", false),
	}
	if !renderer.ValidEngine(rc.PDFEngine) {
		if Logger != nil {
			Logger.Warn("Unknown PDF engine, falling back to pdfium", "engine", rc.PDFEngine)
		}
		rc.PDFEngine = "pdfium"
	}
	if rc.RenderDPI <= 0 {
		rc.RenderDPI = renderer.DefaultDPI
	}
	return rc
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	loadEnvFiles()

	serverConfigLive.LogOutput = getEnv("LOG_OUTPUT", "stdout")
	logger := setupLogging(serverConfigLive.LogOutput)
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "godjvu")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "godjvu")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	fmt.Println("\n========================================")
	fmt.Println("   godjvu - DjVu and PDF page server")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	if serverConfigLive.LogOutput == "file" {
		fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "godjvu.log"))
	}
	fmt.Println("Initializing...")

	// Document storage configuration
	serverConfigLive.DocumentPath = absPath(logger, getEnv("DOCUMENT_PATH", "documents"))
	serverConfigLive.ExportPath = absPath(logger, getEnv("EXPORT_PATH", "exports"))

	serverConfigLive.SessionIdleMinutes = getEnvInt("SESSION_IDLE_MINUTES", 15)
	serverConfigLive.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 100)

	serverConfigLive.RenderConfig = SetupRenderer()
	logger.Info("Render configuration loaded",
		"engine", serverConfigLive.PDFEngine,
		"dpi", serverConfigLive.RenderDPI,
		"strictPDF", serverConfigLive.StrictPDF)

	logger.Info("About to setup database", "type", serverConfigLive.DatabaseType)

	return serverConfigLive, logger
}

// SetupLibraryLogging configures logging for processes that embed the
// library; they default to stderr rather than a log file
func SetupLibraryLogging() *slog.Logger {
	loadEnvFiles()
	logger := setupLogging(getEnv("LOG_OUTPUT", "stderr"))
	Logger = logger
	return logger
}

func absPath(logger *slog.Logger, path string) string {
	abs, err := filepath.Abs(filepath.ToSlash(path))
	if err != nil {
		logger.Error("Failed creating absolute path", "path", path, "error", err)
		return path
	}
	return abs
}

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// setupLogging configures the application logger
func setupLogging(logOutput string) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(getEnv("LOG_LEVEL", "debug"))}

	var logWriter io.Writer

	switch logOutput {
	case "stdout":
		logWriter = os.Stdout
	case "stderr":
		logWriter = os.Stderr
	default:
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "godjvu.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// CheckDirectory verifies that path exists and is a directory, creating it
// when create is set
func CheckDirectory(path string, create bool, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) && create {
		logger.Info("Creating directory", "path", path)
		return os.MkdirAll(path, os.ModePerm)
	}
	if err != nil {
		logger.Error("Cannot access directory", "path", path, "error", err)
		return err
	}
	if !info.IsDir() {
		logger.Error("Path is not a directory", "path", path)
		return fmt.Errorf("%s is not a directory", path)
	}
	logger.Debug("Directory found", "path", path)
	return nil
}
