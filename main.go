package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"challenge-platform-service/handlers"
	"challenge-platform-service/middleware"
	"challenge-platform-service/models"
	"challenge-platform-service/services"
	"challenge-platform-service/utils"
	"challenge-platform-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ChallengeRegistry{},
		&models.AssetDescriptor{},
		&models.Challenge{},
		&models.PlayerEntry{},
		&models.LedgerAccount{},
		&models.TransferRecord{},
		&models.AuditEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	locks := utils.NewKeyedMutex()
	eventLog := services.NewEventLog(db)
	ledgerService := services.NewLedgerService(db)
	registryService := services.NewRegistryService(db, ledgerService, eventLog)
	challengeService := services.NewChallengeService(db, registryService, eventLog, locks)
	escrowService := services.NewEscrowService(db, registryService, ledgerService, eventLog, locks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit log archiving to R2 (optional — skipped when no bucket is configured)
	if utils.R2Configured() {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiveClient := workers.NewArchiveClient(eventLog, os.Getenv("R2_ARCHIVE_PREFIX"))
		go workers.PollAuditEvents(ctx, archiveClient, 60*time.Second)
		log.Println("✅ Audit archive worker running (every 60s)")
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set — audit archiving disabled")
	}

	escrowService.StartConservationAudit()

	// ✅ Setup routes — all behind enforced Gateway auth
	handlers.SetupRegistryRoutes(app, registryService, ledgerService)
	handlers.SetupChallengeRoutes(app, challengeService, escrowService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Conservation audit job running (every 60s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
