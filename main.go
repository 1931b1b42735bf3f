package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"busymirror/api"
	"busymirror/config"
	"busymirror/handlers"
	"busymirror/internal/database"
	"busymirror/internal/provider"
	"busymirror/internal/provider/localcal"
	"busymirror/internal/provider/webcal"
	"busymirror/services/scheduler"
	syncsvc "busymirror/services/sync"
	"busymirror/utils"
)

func main() {
	configPath := flag.String("config", "settings.json", "path to the settings file")
	once := flag.Bool("once", false, "run a single synchronization pass and exit")
	teardown := flag.Bool("teardown", false, "remove all placeholder events and exit")
	flag.Parse()

	if err := run(*configPath, *once, *teardown); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(configPath string, once, teardown bool) error {
	settings, err := config.NewManager(configPath).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	setupLogging(settings.Logging)

	p, cleanup, err := buildProvider(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := syncsvc.New(p, syncsvc.Config{
		PrimaryCalendarID: settings.Sync.PrimaryCalendarID,
		RemoteCalendarID:  settings.Sync.RemoteCalendarID,
		LookBackPeriod:    time.Duration(settings.Sync.LookBackDays) * 24 * time.Hour,
		LookAheadPeriod:   time.Duration(settings.Sync.LookAheadDays) * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("build sync engine: %w", err)
	}

	if teardown {
		removed, err := engine.RemoveBlockingEvents()
		if err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
		log.Printf("[main] teardown removed %d placeholder events", removed)
		return nil
	}
	if once {
		summary, err := engine.Synchronize()
		if err != nil {
			return fmt.Errorf("synchronize: %w", err)
		}
		log.Printf("[main] pass complete: %d created, %d deleted", summary.Created(), summary.Deleted())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(engine, time.Duration(settings.Sync.IntervalMinutes)*time.Minute)
	sched.Start(ctx)

	router := utils.NewRouter()
	limiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	handlers.NewSyncHandler(engine, sched).RegisterRoutes(router, limiter.Middleware)

	srv := &http.Server{
		Addr:    settings.Server.ListenAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on %s", settings.Server.ListenAddr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("[main] shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// setupLogging sends logs to stderr, plus a rotated file when configured.
func setupLogging(cfg config.LoggingSettings) {
	if cfg.Path == "" {
		return
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

// buildProvider constructs the configured calendar provider backend. For the
// sqlite backend the configured calendars are created on first run so the
// engine's construction-time resolution succeeds.
func buildProvider(settings *config.Settings) (provider.Provider, func(), error) {
	switch settings.Provider.Type {
	case config.ProviderSQLite:
		db, err := database.NewDB(database.Config{DatabasePath: settings.Provider.DatabasePath})
		if err != nil {
			return nil, nil, fmt.Errorf("open event store: %w", err)
		}
		local := localcal.New(db)
		for _, id := range []string{settings.Sync.PrimaryCalendarID, settings.Sync.RemoteCalendarID} {
			if id == "" {
				continue
			}
			if err := local.EnsureCalendar(id, id); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return local, func() { db.Close() }, nil
	case config.ProviderHTTP:
		client := webcal.New(webcal.Config{
			BaseURL: settings.Provider.BaseURL,
			APIKey:  settings.Provider.APIKey,
		})
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, settings.Provider.Type)
	}
}
