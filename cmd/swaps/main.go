package main

import (
	"slotswapper/internal/storage"
	"slotswapper/internal/swaps/events"
	"slotswapper/internal/swaps/handler"
	"slotswapper/internal/swaps/service"
	"slotswapper/internal/swaps/validator"
	"slotswapper/pkg/app"
	"slotswapper/pkg/auth"
	"slotswapper/pkg/config"
	kafka_config "slotswapper/pkg/kafka/config"
)

const ServiceName = "swaps"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()
	cfg.SetRedis()

	cfg.Log.Info("Starting Swaps service")
	publisher := initPublisher(cfg)
	swapService := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewSwapHandler(swapService, validator.NewSwapValidator(cfg.Log), cfg.Log),
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
	)
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, swap events will not be published")
		return events.NewNoopPublisher(cfg.Log)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	publisher, err := events.NewKafkaPublisher(kafkaCfg, cfg.SwapEventsTopic, cfg.SwapEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create swap event publisher", "error", err)
	}
	return publisher
}

func initServices(cfg *config.Config, publisher events.Publisher) service.SwapService {
	repos := storage.Open(cfg)
	swapService := service.NewSwapService(
		repos.Slots,
		repos.SwapRequests,
		repos.History,
		repos.Users,
		repos.Tx,
		publisher,
		cfg,
	)

	cfg.Log.Info("Swaps service initialized", "storage", cfg.StorageDriver, "kafka_enabled", cfg.KafkaEnabled)
	return swapService
}
