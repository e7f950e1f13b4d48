package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/segmentio/kafka-go"

	"document-generator-service/internal/config"
	"document-generator-service/internal/document-manager/api"
	taskDB "document-generator-service/internal/document-manager/db"
	dmKafka "document-generator-service/internal/document-manager/kafka"
	"document-generator-service/internal/document-manager/schedules"
	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/internal/document-manager/services"
	"document-generator-service/internal/document-worker/generation"
	"document-generator-service/internal/document-worker/storage"
	gorm_db "document-generator-service/pkg/db"
	"document-generator-service/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.Log, "document-manager")
	logger.Info().Str("dispatch_mode", cfg.Scheduler.DispatchMode).Msg("Document Manager Service starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

	gormDB, err := gorm_db.NewGormDB(gorm_db.Options{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := gorm_db.AutoMigrate(gormDB, taskDB.AllModels()...); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Database migration successful")

	store := schedules.NewStore(gormDB)
	core := scheduling.NewCore(gormDB, store, logger)

	sink, err := storage.FromConfig(appCtx, cfg.Output)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure document storage")
	}
	job := generation.NewJob(gormDB, core, sink, cfg.Output.Dir, logger)

	resultService := services.NewResultService(gormDB, nil, logger)
	var dispatcher services.Dispatcher
	var producer *kafka.Writer
	if cfg.Scheduler.DispatchMode == config.DispatchModeKafka {
		producer = dmKafka.NewProducer(cfg.Kafka, cfg.Kafka.GenerationTopic, logger)
		dispatcher = services.NewKafkaDispatcher(producer, logger)
		resultService.Reader = dmKafka.NewConsumer(cfg.Kafka, cfg.Kafka.ResultTopic, cfg.Kafka.ResultGroupID, logger)
	} else {
		dispatcher = services.NewLocalDispatcher(job, resultService, logger)
	}

	schedulerService, err := services.NewSchedulerService(appCtx, store, dispatcher, cfg.Scheduler.RefreshInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler service")
	}
	resultService.Syncer = schedulerService
	if resultService.Reader != nil {
		resultService.StartConsuming(appCtx)
	}
	if err := schedulerService.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler service")
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(cfg.ServerAddr), server.WithExitWaitTime(5*time.Second))
	api.RegisterRoutes(h.Engine, api.Handlers{
		Documents: api.NewDocumentHandler(gormDB, job, logger),
		Tasks:     api.NewTaskHandler(gormDB, core, schedulerService, logger),
		Sequences: api.NewSequenceHandler(gormDB),
		Schedules: api.NewScheduleHandler(store, schedulerService),
	})

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		hlog.Infof("Received signal: %s. Initiating graceful shutdown...", sig)

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("Hertz server shutdown error: %v", err)
		} else {
			hlog.Info("Hertz server gracefully stopped.")
		}

		schedulerService.Stop()
		resultService.Close()

		if producer != nil {
			if err := producer.Close(); err != nil {
				hlog.Errorf("Kafka producer close error: %v", err)
			} else {
				hlog.Info("Kafka producer closed.")
			}
		}
		hlog.Info("Document Manager gracefully shut down.")
	}()

	hlog.Infof("Document Manager Service fully initialized and starting Hertz server on %s...", cfg.ServerAddr)
	h.Spin()

	logger.Info().Msg("Document Manager Service has been shut down")
}
