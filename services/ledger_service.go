// services/ledger_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"challenge-platform-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService is the custodial asset ledger the escrow operations move
// funds through. It enforces who may debit which account: vaults are only
// movable under the registry authority, user accounts only by themselves.
// A transfer either fully moves the amount or fails leaving both balances
// unchanged; it always runs inside the caller's transaction.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureVault creates the custodial vault account for assetID if missing
// and returns its address.
func (s *LedgerService) EnsureVault(tx *gorm.DB, assetID, vaultAddress string) error {
	var account models.LedgerAccount
	err := tx.First(&account, "address = ?", vaultAddress).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&models.LedgerAccount{
		Address: vaultAddress,
		AssetID: assetID,
		IsVault: true,
	}).Error
}

// Transfer moves amount of assetID from source to destination. The
// destination account is created on first credit; the source must exist,
// hold enough balance, and be debitable by authority.
func (s *LedgerService) Transfer(tx *gorm.DB, assetID, source, destination, authority string, amount int64, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidValue)
	}
	if source == destination {
		return fmt.Errorf("%w: source and destination are the same account", ErrInvalidValue)
	}

	var from models.LedgerAccount
	if err := tx.First(&from, "address = ? AND asset_id = ?", source, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
		}
		return err
	}

	if from.IsVault {
		if authority != models.RegistryAuthority {
			return ErrUnauthorizedTransfer
		}
	} else if authority != from.Address {
		return ErrUnauthorizedTransfer
	}

	if from.Balance < amount {
		return ErrInsufficientFunds
	}

	var to models.LedgerAccount
	if err := tx.First(&to, "address = ? AND asset_id = ?", destination, assetID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		to = models.LedgerAccount{Address: destination, AssetID: assetID}
		if err := tx.Create(&to).Error; err != nil {
			return err
		}
	}

	// The debit is conditional on the balance still covering the amount.
	// The read above can be stale under concurrent transfers out of the
	// same account; this guard is what actually prevents an overdraw.
	debit := tx.Model(&models.LedgerAccount{}).
		Where("address = ? AND asset_id = ? AND balance >= ?", source, assetID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if debit.Error != nil {
		return debit.Error
	}
	if debit.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	if err := tx.Model(&models.LedgerAccount{}).
		Where("address = ? AND asset_id = ?", destination, assetID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return err
	}

	return tx.Create(&models.TransferRecord{
		ID:          uuid.NewString(),
		AssetID:     assetID,
		Source:      source,
		Destination: destination,
		Authority:   authority,
		Amount:      amount,
		Reference:   reference,
	}).Error
}

// Credit tops up an account out of thin air. Administrator-only surface,
// used to fund participant accounts in environments where the real asset
// bridge is out of band.
func (s *LedgerService) Credit(assetID, address string, amount int64) (models.LedgerAccount, error) {
	var account models.LedgerAccount
	if amount <= 0 {
		return account, fmt.Errorf("%w: credit amount must be positive", ErrInvalidValue)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&account, "address = ? AND asset_id = ?", address, assetID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = models.LedgerAccount{Address: address, AssetID: assetID}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&models.LedgerAccount{}).
			Where("address = ? AND asset_id = ?", address, assetID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}

		return tx.First(&account, "address = ? AND asset_id = ?", address, assetID).Error
	})
	return account, err
}

// Balance returns the current balance of one account.
func (s *LedgerService) Balance(assetID, address string) (models.LedgerAccount, error) {
	var account models.LedgerAccount
	if err := s.DB.First(&account, "address = ? AND asset_id = ?", address, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return account, err
	}
	return account, nil
}

// --- Handlers ---

// CreditAccount tops up a ledger account (Admin only).
func (s *LedgerService) CreditAccount(registry *RegistryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.Locals("user_id").(string)

		reg, err := registry.Load(s.DB)
		if err != nil {
			return errorResponse(c, err)
		}
		if !reg.IsAdministrator(identity) {
			return errorResponse(c, ErrOnlyAdministrator)
		}

		var req struct {
			AssetID string `json:"asset_id"`
			Amount  int64  `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.AssetID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_id is required"})
		}

		account, err := s.Credit(req.AssetID, c.Params("address"), req.Amount)
		if err != nil {
			log.Printf("[LEDGER] credit failed for %s: %v", c.Params("address"), err)
			return errorResponse(c, err)
		}

		return c.JSON(account)
	}
}

// GetAccount returns one ledger account balance.
func (s *LedgerService) GetAccount(c *fiber.Ctx) error {
	assetID := c.Query("asset_id")
	if assetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_id query parameter is required"})
	}

	account, err := s.Balance(assetID, c.Params("address"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(account)
}
