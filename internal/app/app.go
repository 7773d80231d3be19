package app

import (
	"context"
	"fmt"
	"log/slog"

	"statswatch/internal/config"
	"statswatch/internal/infrastructure/email"
	"statswatch/internal/infrastructure/fetch"
	"statswatch/internal/infrastructure/scheduler"
	"statswatch/internal/infrastructure/storage"
	"statswatch/internal/logging"
	"statswatch/internal/usecase"
)

// Application wires config to adapters and the monitoring use case.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	repo    *storage.SQLiteRepository
	monitor *usecase.Monitor
}

// New opens storage, seeds configured sources and builds the monitor.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repo, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	for _, src := range cfg.Sources {
		if src.URL == "" {
			continue
		}
		name := src.Name
		if name == "" {
			name = src.URL
		}
		if _, err := repo.AddItem(ctx, name, src.URL); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("seed source %s: %w", src.URL, err)
		}
	}

	notifier := email.NewNotifier(
		cfg.Email.Host, cfg.Email.Port,
		cfg.Email.Sender, cfg.Email.Password, cfg.Email.Recipient,
		baseLogger.With("component", "email"))
	if !notifier.Configured() {
		baseLogger.Warn("email credentials not configured, notifications disabled")
	}

	monitor := usecase.NewMonitor(usecase.MonitorDeps{
		Fetcher:        fetch.NewClient(cfg.Fetch.Timeout()),
		Repository:     repo,
		Notifier:       notifier,
		Driver:         scheduler.NewIntervalScheduler(cfg.Scheduler.Interval()),
		Logger:         baseLogger.With("component", "monitor"),
		NotifyOnChange: cfg.Notifications.Enabled(),
	})

	return &Application{cfg: cfg, logger: baseLogger, repo: repo, monitor: monitor}, nil
}

// Monitor exposes the monitoring use case to the CLI layer.
func (a *Application) Monitor() *usecase.Monitor {
	return a.monitor
}

// Run starts the scheduler and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting scheduler",
		"interval", a.cfg.Scheduler.Interval().String(),
		"database", a.cfg.Database.Path)

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	return a.monitor.Stop(context.Background())
}

// Close releases the storage handle.
func (a *Application) Close() error {
	return a.repo.Close()
}
