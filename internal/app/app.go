package app

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

	"github.com/spf13/viper"

	"portfolio-ai/backend/internal/api"
	"portfolio-ai/backend/internal/config"
	"portfolio-ai/backend/internal/llm"
	"portfolio-ai/backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App is the wired relay server.
type App struct {
	Config *config.Config
	Server *http.Server
}

// NewApp wires provider, services, handlers and router into an http.Server.
// A missing upstream credential is not an error here: the relay starts and
// fails every completion request with a configuration error instead.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg.AppPort <= 0 {
		return nil, fmt.Errorf("invalid APP_PORT %d", cfg.AppPort)
	}

	provider := llm.NewDeepSeekProvider(cfg.UpstreamURL, cfg.DeepSeekAPIKey, cfg.UpstreamIdleTimeout)
	if !provider.Configured() {
		slog.Warn("DEEPSEEK_API_KEY is not set; completion requests will fail with 500")
	}

	relayService := service.NewRelayService(provider)
	modelService := service.NewModelService()

	relayHandler := api.NewRelayHandler(relayService, cfg.MaxRequestBytes)
	modelHandler := api.NewModelHandler(modelService)

	var limiter *api.IPRateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	router := api.NewRouter(relayHandler, modelHandler, limiter)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	return &App{Config: cfg, Server: server}, nil
}

// Run starts the relay and blocks until SIGINT/SIGTERM. It returns the
// process exit code.
func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	SetupLogger(cfg.LogLevel)
	logConfigSource()

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

// Serve runs the server until ctx is done, then shuts it down. Streams still
// open after shutdownTimeout are cut.
func (a *App) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", a.Config.AppPort, "upstream", a.Config.UpstreamURL)
		errCh <- a.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Graceful shutdown timed out, closing open streams", "error", err)
		return a.Server.Close()
	}
	return nil
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

// SetupLogger installs a JSON slog logger on stdout as the default.
func SetupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})))
}

// ParseLevel maps LOG_LEVEL to a slog level. Unknown values mean INFO.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
