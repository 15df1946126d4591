// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Typed failures returned by the lifecycle operations. Every precondition
// violation surfaces as one of these; nothing is retried internally.
var (
	// One-shot setup violations
	ErrAlreadyInitialized     = errors.New("the platform registry was already initialized")
	ErrAssetAlreadyRegistered = errors.New("the asset was already registered")
	ErrChallengeAlreadyExists = errors.New("a challenge with this id already exists")

	// Authorization violations
	ErrOnlyAdministrator = errors.New("only platform administrators can execute this operation")
	ErrOnlyOwner         = errors.New("only the challenge owner can execute this operation")
	ErrOnlyParticipant   = errors.New("only participants can execute this operation")

	// Whitelist violation
	ErrAssetNotAllowed = errors.New("the reward asset is not whitelisted")

	// State-machine precondition violations
	ErrChallengeCannotBeCanceled = errors.New("challenge cannot be canceled")
	ErrDepositNotAvailable       = errors.New("deposit is not available for the challenge")
	ErrClaimNotAvailable         = errors.New("claim is not available for the challenge")
	ErrWithdrawalNotAvailable    = errors.New("withdrawal is not available for the challenge")

	// Input-value violations
	ErrMinDepositNotReached = errors.New("min deposit amount is not reached")
	ErrAlreadyParticipated  = errors.New("the participant already joined the challenge")
	ErrWinnerNotParticipant = errors.New("a submitted winner never deposited into the challenge")
	ErrInvalidValue         = errors.New("invalid value")

	// Lookup failures
	ErrRegistryNotInitialized = errors.New("the platform registry is not initialized")
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrAccountNotFound        = errors.New("ledger account not found")

	// Ledger failures
	ErrInsufficientFunds    = errors.New("insufficient funds for transfer")
	ErrUnauthorizedTransfer = errors.New("authority is not allowed to debit the source account")
)

// StatusForError maps a typed failure to the HTTP status the handlers return.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, ErrAssetAlreadyRegistered),
		errors.Is(err, ErrChallengeAlreadyExists),
		errors.Is(err, ErrAlreadyParticipated),
		errors.Is(err, ErrChallengeCannotBeCanceled),
		errors.Is(err, ErrDepositNotAvailable),
		errors.Is(err, ErrClaimNotAvailable),
		errors.Is(err, ErrWithdrawalNotAvailable):
		return fiber.StatusConflict
	case errors.Is(err, ErrOnlyAdministrator),
		errors.Is(err, ErrOnlyOwner),
		errors.Is(err, ErrOnlyParticipant),
		errors.Is(err, ErrUnauthorizedTransfer):
		return fiber.StatusForbidden
	case errors.Is(err, ErrAssetNotAllowed),
		errors.Is(err, ErrMinDepositNotReached),
		errors.Is(err, ErrWinnerNotParticipant),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidValue):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrRegistryNotInitialized),
		errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrAccountNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(StatusForError(err)).JSON(fiber.Map{"error": err.Error()})
}
