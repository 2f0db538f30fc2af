package main

import (
	"slotswapper/internal/slots/handler"
	"slotswapper/internal/slots/service"
	"slotswapper/internal/slots/validator"
	"slotswapper/internal/storage"
	"slotswapper/pkg/app"
	"slotswapper/pkg/auth"
	"slotswapper/pkg/config"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()
	cfg.SetRedis()

	cfg.Log.Info("Starting Slots service")
	slotService := initServices(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewSlotHandler(slotService, cfg.Log), auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.SlotService {
	repos := storage.Open(cfg)
	slotService := service.NewSlotService(
		repos.Slots,
		repos.Users,
		repos.Tx,
		validator.NewSlotValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Slots service initialized", "storage", cfg.StorageDriver)
	return slotService
}
