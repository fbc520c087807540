package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"leadgen/internal/api"
	"leadgen/internal/config"
	"leadgen/internal/intake"
	"leadgen/internal/logging"
	"leadgen/internal/messaging"
	"leadgen/internal/metrics"
	"leadgen/internal/notify"
	"leadgen/internal/storage"
	"leadgen/internal/worker"
)

func main() {
	// Init Metrics
	metrics.Init()

	// Load Configuration
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logging.New(cfg.LogLevel)
	log.WithField("storage", cfg.Storage.Backend).Info("configuration loaded")

	// Init lead store
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init lead store")
	}
	defer closeStore()

	// Init RabbitMQ (optional)
	var events intake.Publisher
	stopDepth := func() {}
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to RabbitMQ")
		}
		defer rabbitClient.Close()
		events = rabbitClient
		stopDepth = watchQueueDepth(rabbitClient)
		log.Info("RabbitMQ connected")
	}

	mailer := notify.New(notify.Config{
		Host: cfg.SMTP.Host,
		Port: cfg.SMTP.Port,
		User: cfg.SMTP.User,
		Pass: cfg.SMTP.Pass,
		From: cfg.Mail.From,
	}, log)

	svc := intake.NewService(intake.Options{
		Store:      store,
		Mailer:     mailer,
		Events:     events,
		BrandName:  cfg.BrandName,
		Recipients: cfg.Recipients(),
		Logger:     log,
	})

	// Init API
	apiHandler := api.NewAPI(svc, cfg, log)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown Setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", server.Addr).Info("starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown error")
	}
	stopDepth()

	log.Info("graceful shutdown complete")
}

// openStore builds the configured lead store. The returned func releases
// whatever the store holds.
func openStore(cfg *config.Config, log *logrus.Logger) (storage.LeadStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := storage.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("PostgreSQL connected")
		return db, func() { db.Close() }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info("Redis connected")
		return storage.NewRedisStore(client, log), func() { client.Close() }, nil

	default:
		file := storage.NewFileStore(cfg.Leads.File, log)
		writer := worker.NewSerialWriter(file, cfg.Storage.QueueSize, log)
		writer.Start()
		log.WithField("path", file.Path()).Info("using leads file")
		return writer, writer.Stop, nil
	}
}

// watchQueueDepth refreshes the events queue depth gauge until the
// returned func is called.
func watchQueueDepth(rabbit *messaging.RabbitClient) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rabbit.UpdateQueueDepth()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
