package handlers

import (
	"challenge-platform-service/middleware"
	"challenge-platform-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRegistryRoutes(app *fiber.App, registryService *services.RegistryService, ledgerService *services.LedgerService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Platform registry governance
	secured.Post("/registry/initialize", registryService.Initialize)
	secured.Get("/registry", registryService.Get)
	secured.Put("/registry", registryService.Update)

	// Asset whitelist & vaults
	secured.Post("/registry/assets", registryService.CreateAsset)
	secured.Get("/registry/assets", registryService.ListAssets)

	// Custodial ledger
	secured.Post("/ledger/accounts/:address/credit", ledgerService.CreditAccount(registryService))
	secured.Get("/ledger/accounts/:address", ledgerService.GetAccount)
}
