package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"PulseCast/internal/domain/repository"
	"PulseCast/internal/handler/api"
	internalrepo "PulseCast/internal/repository"
	"PulseCast/internal/ml/lstm"
	"PulseCast/internal/ml/validation"
	"PulseCast/internal/usecase"
	pkgcache "PulseCast/pkg/cache"
	pkgch "PulseCast/pkg/clickhouse"
	"PulseCast/pkg/config"
	xhttp "PulseCast/pkg/http"
	pkgkafka "PulseCast/pkg/kafka"
	applogger "PulseCast/pkg/logger"
	"PulseCast/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	collector   *usecase.SummaryCollector
	consumer    *pkgkafka.Consumer
	producer    *pkgkafka.Producer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	metrics     repository.Metrics
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	jobQueue    *queue.RedisQueue
	SummaryProc *usecase.SummaryProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.SummaryCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	metrics repository.Metrics,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		consumer:  consumer,
		producer:  producer,
		kh:        kh,
		chClient:  chClient,
		metrics:   metrics,
	}
}

// kafkaLogSink adapts the Kafka producer to the logger's aggregated-log
// publisher.
type kafkaLogSink struct {
	p *pkgkafka.Producer
}

func (s kafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.p.Publish(ctx, topic, nil, payload)
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init app logger (console info by default)
	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	// aggregate repeated error logs onto a Kafka topic when a producer is
	// available
	if a.producer != nil && a.cfg.Kafka.Topic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.Topic + ".error_logs",
			Publisher:      kafkaLogSink{a.producer},
		})
		defer l.RemoveCollector()
	}

	// Setup Echo HTTP server using pkg/http and register routes via handler
	var httpHandler xhttp.Handler
	if a.httpHandler != nil {
		httpHandler = a.httpHandler
	} else if a.chClient != nil {
		h, err := a.buildForecastHandler(l)
		if err != nil {
			l.Error("forecast stack init failed", applogger.Error(err))
			return err
		}
		httpHandler = h
	}

	a.httpServer = xhttp.NewServer(httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	a.registerHealth()

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started", applogger.Strings("streams", a.cfg.Gateway.Streams))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// buildForecastHandler assembles the serving and training stack on top of
// the ingestion pipeline.
func (a *App) buildForecastHandler(l *applogger.Logger) (xhttp.Handler, error) {
	cfg := a.cfg

	table := cfg.ClickHouse.Table
	if table == "" {
		table = "daily_summaries"
	}
	store := internalrepo.NewCHFeatureStore(a.chClient, cfg.ClickHouse.Database+"."+table)
	store.SetLogger(l)

	modelDir := cfg.Training.ModelDir
	if modelDir == "" {
		modelDir = "models"
	}
	modelStore, err := internalrepo.NewFSModelStore(modelDir)
	if err != nil {
		return nil, err
	}

	cvCfg := a.validationConfig()
	maxDays := cfg.Training.MaxDays
	if maxDays <= 0 {
		maxDays = 730
	}

	trainer := usecase.NewTrainingUseCase(store, modelStore, a.metrics, cvCfg, lstm.DefaultConfig(), maxDays, l)

	var cacheSvc pkgcache.Service = pkgcache.NewMemoryCache()
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		host, port := splitAddr(cfg.Redis.Addr)
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			l.Warn("redis cache unavailable, using memory cache", applogger.Error(err))
		} else {
			cacheSvc = pkgcache.NewLayeredCache(rc)
			rdb = rc.Client()
		}
	}

	forecaster := usecase.NewForecastUseCase(store, modelStore, cacheSvc, a.metrics, cvCfg.Lookback, l)

	var jobs queue.QueueService
	if cfg.Training.Async && rdb != nil {
		workers := cfg.Training.QueueWorkers
		if workers <= 0 {
			workers = 1
		}
		a.jobQueue = queue.NewRedisQueue(l, &queue.QueueConfig{
			Workers:    workers,
			RetryLimit: 1,
			RetryDelay: time.Minute,
		}, rdb, queue.ModeProducerConsumer)
		a.jobQueue.RegisterJob(usecase.NewTrainingJob(trainer, l))
		if err := a.jobQueue.Start(); err != nil {
			l.Warn("training queue start failed, training synchronously", applogger.Error(err))
			a.jobQueue = nil
		} else {
			jobs = a.jobQueue
		}
	}

	return api.NewHRVEchoHandler(l, forecaster, trainer, jobs), nil
}

// validationConfig maps training config onto the walk-forward policy,
// keeping defaults for unset knobs.
func (a *App) validationConfig() validation.Config {
	cv := validation.DefaultConfig()
	t := a.cfg.Training
	if t.MinTrainDays > 0 {
		cv.MinTrainDays = t.MinTrainDays
	}
	if t.GapDays > 0 {
		cv.GapDays = t.GapDays
	}
	if t.Lookback > 0 {
		cv.Lookback = t.Lookback
	}
	if t.TopK > 0 {
		cv.TopK = t.TopK
	}
	if t.StabilityFrac > 0 {
		cv.StabilityFraction = t.StabilityFrac
	}
	if t.MinFoldSequences > 0 {
		cv.MinFoldSequences = t.MinFoldSequences
	}
	return cv
}

// registerHealth exposes liveness over the Echo instance.
func (a *App) registerHealth() {
	a.httpServer.Echo().GET("/healthz", func(c echo.Context) error {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if a.chClient != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := a.chClient.DB().PingContext(ctx); err != nil {
				status["clickhouse"] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if a.collector != nil && !a.collector.IsConnected() {
			status["gateway"] = "disconnected"
			if status["status"] == "ok" {
				status["status"] = "degraded"
			}
		}
		return c.JSON(code, status)
	})
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// best-effort logging via stdout
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop training queue workers
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			l.Warn("training queue stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close summary processor resources (publisher/storage)
	if a.SummaryProc != nil {
		a.SummaryProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
