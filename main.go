package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yeremiapane/pix-checkout/config"
	"github.com/yeremiapane/pix-checkout/router"
	"github.com/yeremiapane/pix-checkout/services"
	"github.com/yeremiapane/pix-checkout/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}

	db, err := config.InitDB(cfg.DatabaseDSN)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	utils.InitDB(db)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	overdue := services.NewOverdueChecker(db)
	overdue.Start()
	defer overdue.Stop()

	r := router.SetupRouter(db, cfg)

	utils.InfoLogger.Printf("pix-checkout listening on %s (gateway env: %s)", cfg.ListenAddr, cfg.GatewayEnv)
	if err := r.Run(cfg.ListenAddr); err != nil {
		utils.ErrorLogger.Fatalf("Server failed: %v", err)
	}
}
