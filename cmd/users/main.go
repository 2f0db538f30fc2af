package main

import (
	"slotswapper/internal/storage"
	"slotswapper/internal/users/handler"
	"slotswapper/internal/users/service"
	"slotswapper/internal/users/validator"
	"slotswapper/pkg/app"
	"slotswapper/pkg/auth"
	"slotswapper/pkg/config"
)

const ServiceName = "users"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()
	cfg.SetRedis()

	cfg.Log.Info("Starting Users service")
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	userService := initServices(cfg, tokens)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewUserHandler(userService, cfg.Log), tokens, handler.PublicPaths...)
	serverApp.Run()
}

func initServices(cfg *config.Config, tokens *auth.TokenManager) service.UserService {
	repos := storage.Open(cfg)
	userService := service.NewUserService(
		repos.Users,
		tokens,
		validator.NewUserValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Users service initialized", "storage", cfg.StorageDriver)
	return userService
}
