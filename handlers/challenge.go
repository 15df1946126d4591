package handlers

import (
	"challenge-platform-service/middleware"
	"challenge-platform-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService, escrowService *services.EscrowService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Challenge lifecycle
	secured.Post("/challenges", challengeService.Create)
	secured.Get("/challenges", challengeService.List)
	secured.Get("/challenges/:id", challengeService.GetByID)
	secured.Post("/challenges/:id/cancel", challengeService.Cancel)
	secured.Post("/challenges/:id/winners", challengeService.Winners)

	// Fund movement
	secured.Post("/challenges/:id/deposit", escrowService.DepositHandler)
	secured.Post("/challenges/:id/donate", escrowService.DonateHandler)
	secured.Post("/challenges/:id/claim", escrowService.ClaimHandler)
	secured.Post("/challenges/:id/withdraw", escrowService.WithdrawHandler)
	secured.Post("/challenges/:id/donations/sweep", escrowService.SweepHandler)

	// Audit trail
	secured.Get("/challenges/:id/events", escrowService.EventsHandler)
}
