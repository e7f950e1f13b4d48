package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"document-generator-service/internal/config"
	taskDB "document-generator-service/internal/document-manager/db"
	dmKafka "document-generator-service/internal/document-manager/kafka"
	"document-generator-service/internal/document-manager/schedules"
	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/internal/document-worker/consumer"
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
	logger := logging.New(cfg.Log, "document-worker")
	logger.Info().Msg("Starting Document Worker Service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, cancelling context")
		cancel()
	}()

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

	// Next sequence steps are registered in the shared schedule table; the
	// manager picks them up on its next sync.
	core := scheduling.NewCore(gormDB, schedules.NewStore(gormDB), logger)
	sink, err := storage.FromConfig(ctx, cfg.Output)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure document storage")
	}
	job := generation.NewJob(gormDB, core, sink, cfg.Output.Dir, logger)

	reader := dmKafka.NewConsumer(cfg.Kafka, cfg.Kafka.GenerationTopic, cfg.Kafka.WorkerGroupID, logger)
	defer reader.Close()
	producer := dmKafka.NewProducer(cfg.Kafka, cfg.Kafka.ResultTopic, logger)
	defer producer.Close()

	c := consumer.New(reader, producer, job, cfg.Worker.RatePerSec, logger)
	if err := c.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Document worker stopped with error")
	}
	logger.Info().Msg("Document Worker Service has been shut down")
}
