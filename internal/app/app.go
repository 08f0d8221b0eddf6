package app

import (
	"ainews/internal/adapter/fetcher"
	"ainews/internal/adapter/parser"
	"ainews/internal/adapter/preview"
	"ainews/internal/adapter/publisher"
	"ainews/internal/config"
	"ainews/internal/logger"
	"ainews/internal/migrations"
	server "ainews/internal/transport/http"
	"ainews/internal/usecase"
	"ainews/internal/worker"
	"ainews/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const shutdownTimeout = 10 * time.Second

// App представляет основное приложение агрегатора AI-новостей.
// Координирует работу всех компонентов: HTTP-сервера, планировщика проходов по лентам,
// хранилища в памяти и необязательных приёмников (архив в PostgreSQL, события в Kafka).
type App struct {
	config   *config.Config
	logger   *slog.Logger
	server   *http.Server
	worker   *worker.Worker
	sinks    []storage.Archive
	stopChan chan os.Signal
	wg       sync.WaitGroup
}

// New создает и инициализирует приложение.
// Недоступный архив не мешает запуску: агрегатор продолжает работать только с памятью.
func New(cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)

	feedNames := make(map[string]string)
	urls := make([]string, 0, len(cfg.App.FeedURLs))
	for _, feed := range cfg.App.FeedURLs {
		feedNames[feed.URL] = feed.Name
		urls = append(urls, feed.URL)
	}
	interval, feedTimeout, previewTimeout := cfg.App.Durations()
	clock := clockwork.NewRealClock()

	store := storage.NewMemoryStore(cfg.App.RetentionLimit)
	sinks := buildSinks(cfg, appLogger)

	feedFetcher := fetcher.NewHTTPFetcher(appLogger, cfg.App.UserAgent, feedTimeout)
	pageFetcher := fetcher.NewHTTPFetcher(appLogger, cfg.App.UserAgent, previewTimeout)
	rssParser := parser.NewRSSParser(appLogger)
	previewer := preview.New(pageFetcher, cfg.App.PreviewChars, previewTimeout, appLogger)

	feedProcessor := usecase.NewFeedProcessingUseCase(
		feedFetcher,
		rssParser,
		previewer,
		appLogger,
		feedNames,
		cfg.App.MaxEntriesPerFeed,
		feedTimeout,
		clock,
	)
	newsQuery := usecase.NewNewsQueryUseCase(store)

	workerSinks := make([]worker.Sink, 0, len(sinks))
	for _, s := range sinks {
		workerSinks = append(workerSinks, s)
	}
	feedWorker := worker.New(feedProcessor, store, urls, worker.Options{
		Interval:         interval,
		PreviewBudget:    cfg.App.PreviewBudget,
		FetchConcurrency: cfg.App.FetchConcurrency,
		Clock:            clock,
		Sinks:            workerSinks,
	}, appLogger)

	handler := server.NewHandler(appLogger, newsQuery, feedWorker, store)
	router := server.NewServer(appLogger, handler, server.ServerOptions{
		APIPrefix:      cfg.Server.APIPrefix,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &App{
		config:   cfg,
		logger:   appLogger,
		server:   httpServer,
		worker:   feedWorker,
		sinks:    sinks,
		stopChan: make(chan os.Signal, 1),
	}, nil
}

func buildSinks(cfg *config.Config, log *slog.Logger) []storage.Archive {
	var sinks []storage.Archive
	if cfg.Database.Enabled {
		archive, err := openArchive(cfg.Database, log)
		if err != nil {
			log.Error("Article archive disabled",
				slog.String("component", "database"),
				slog.Any("error", err),
			)
		} else {
			sinks = append(sinks, archive)
		}
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log))
	}
	return sinks
}

func openArchive(cfg config.DatabaseConfig, log *slog.Logger) (*storage.PostgresArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	dbPool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := migrations.Apply(ctx, log, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	log.Info("Database connection established", slog.String("component", "database"))
	return storage.NewPostgresArchive(dbPool, log), nil
}

// Run запускает приложение: открывает listener, запускает планировщик и HTTP-сервер,
// затем блокируется до сигнала завершения или падения сервера.
// Ошибка привязки к адресу возвращается сразу: это единственный фатальный сбой запуска.
func (a *App) Run() error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.closeSinks()
		return fmt.Errorf("failed to create listener on %s: %w", a.server.Addr, err)
	}
	a.logger.Info("Starting AI news aggregator",
		slog.String("component", "app"),
		slog.Int("feed_count", len(a.worker.GetURLs())),
		slog.String("processing_interval", a.worker.GetInterval().String()),
		slog.Int("sinks", len(a.sinks)),
	)
	a.worker.Start()

	serverErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server ready",
			slog.String("component", "server"),
			slog.String("address", listener.Addr().String()),
			slog.String("api_prefix", a.config.Server.APIPrefix),
		)
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)
	var runErr error
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		a.logger.Error("HTTP server failed", slog.String("component", "server"), slog.Any("error", err))
		runErr = fmt.Errorf("http server failed: %w", err)
	}
	a.Shutdown()
	return runErr
}

// Shutdown выполняет graceful shutdown приложения.
// Останавливает планировщик (текущий проход доводится до конца), завершает HTTP-сервер
// с таймаутом и закрывает приёмники.
func (a *App) Shutdown() {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	a.worker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed",
			slog.String("component", "server"),
			slog.Any("error", err),
		)
	}
	a.wg.Wait()
	a.closeSinks()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
}

func (a *App) closeSinks() {
	for _, s := range a.sinks {
		if err := s.Close(); err != nil {
			a.logger.Error("Failed to close sink",
				slog.String("component", "app"),
				slog.String("sink", s.Name()),
				slog.Any("error", err),
			)
		}
	}
}
