package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"alertpulse/internal/api"
	"alertpulse/internal/bus"
	"alertpulse/internal/config"
	"alertpulse/internal/engine"
	"alertpulse/internal/notify"
	"alertpulse/internal/scheduler"
	"alertpulse/internal/source"
	"alertpulse/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	repo := storage.NewRepository(store)

	natsConn, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		logger.Error("failed to connect to nats", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer natsConn.Drain()

	sources, err := source.BuildRegistry(cfg.Connections)
	if err != nil {
		logger.Error("failed to configure series sources", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sources.Close()

	notifier := notify.Fanout{
		notify.NewNATSNotifier(natsConn),
		notify.NewWebhookNotifier(cfg.NotifyTimeout()),
	}
	runner := &engine.Runner{
		Evaluator:  &engine.Evaluator{Source: sources, FetchTimeout: cfg.FetchTimeout()},
		Store:      repo,
		Dispatcher: &engine.Dispatcher{Notifier: notifier, Logger: logger},
		Logger:     logger,
	}

	reg := scheduler.NewRegistry(scheduler.Config{
		Repo:         repo,
		Runner:       runner,
		Logger:       logger,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		ScanInterval: cfg.ScanInterval(),
		CycleTimeout: cfg.CycleTimeout(),
	})
	reg.Start()
	defer reg.Stop()
	reg.ScanOnce(ctx)

	subscribeEvents(bus.NewSubscriber(natsConn), reg, logger)

	handler := &api.Handler{
		Repo:                   repo,
		Bus:                    bus.NewPublisher(natsConn),
		Jobs:                   reg,
		Timeout:                10 * time.Second,
		AllowAdvancedDetectors: cfg.AllowAdvancedDetectors,
	}
	go startAdminServer(cfg.AdminPort, handler, logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.Info("shutting down")
}

// subscribeEvents kicks the scheduler when an alert's configuration changes
// so edits take effect before the next due scan.
func subscribeEvents(sub *bus.Subscriber, reg *scheduler.Registry, logger *slog.Logger) {
	subscribe := func(subject string) {
		if _, err := sub.Subscribe(subject, func(evt bus.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			reg.Kick(ctx, evt.AlertID)
		}); err != nil {
			logger.Error("subscribe failed", slog.String("subject", subject), slog.String("error", err.Error()))
		}
	}
	subscribe(bus.SubjectAlertCreated)
	subscribe(bus.SubjectAlertUpdated)
	subscribe(bus.SubjectAlertEnabled)
	subscribe(bus.SubjectAlertDisabled)
	subscribe(bus.SubjectAlertDeleted)
}

func startAdminServer(port string, handler *api.Handler, logger *slog.Logger) {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	logger.Info("admin server listening", slog.String("port", port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin server error", slog.String("error", err.Error()))
	}
}
