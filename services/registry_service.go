// services/registry_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"challenge-platform-service/models"
	"challenge-platform-service/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AssetInput is one whitelisted asset as supplied by initialization or a
// wholesale registry update.
type AssetInput struct {
	AssetID string `json:"asset_id"`
	Enabled bool   `json:"enabled"`
}

// RegistryService manages the platform governance record: the owner, the
// administrator set and the reward-asset whitelist.
type RegistryService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Events *EventLog
}

func NewRegistryService(db *gorm.DB, ledger *LedgerService, events *EventLog) *RegistryService {
	return &RegistryService{DB: db, Ledger: ledger, Events: events}
}

// Load fetches the singleton registry with its asset whitelist.
func (s *RegistryService) Load(db *gorm.DB) (*models.ChallengeRegistry, error) {
	var registry models.ChallengeRegistry
	err := db.Preload("Assets").First(&registry, "id = ?", models.RegistryKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRegistryNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return &registry, nil
}

// InitializeRegistry bootstraps the platform exactly once. A second attempt
// fails and leaves the first registry untouched.
func (s *RegistryService) InitializeRegistry(owner string, administrators []string, assets []AssetInput) (*models.ChallengeRegistry, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner identity is required", ErrInvalidValue)
	}

	var registry models.ChallengeRegistry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.ChallengeRegistry
		err := tx.First(&existing, "id = ?", models.RegistryKey).Error
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		registry = models.ChallengeRegistry{
			ID:             models.RegistryKey,
			Owner:          owner,
			WasInitialized: true,
		}
		registry.SetAdministrators(administrators)
		if err := tx.Create(&registry).Error; err != nil {
			return err
		}

		for _, asset := range assets {
			if asset.AssetID == "" {
				return fmt.Errorf("%w: asset_id is required", ErrInvalidValue)
			}
			descriptor := models.AssetDescriptor{
				AssetID:      asset.AssetID,
				RegistryID:   registry.ID,
				VaultAddress: utils.DeriveVaultAddress(asset.AssetID),
				Enabled:      asset.Enabled,
			}
			if err := tx.Create(&descriptor).Error; err != nil {
				return err
			}
			if err := s.Ledger.EnsureVault(tx, asset.AssetID, descriptor.VaultAddress); err != nil {
				return err
			}
			registry.Assets = append(registry.Assets, descriptor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[REGISTRY] platform initialized by %s with %d asset(s)", owner, len(registry.Assets))
	return &registry, nil
}

// UpdateRegistry replaces the administrator set and the asset whitelist
// wholesale. No incremental diff: what is submitted is what remains.
func (s *RegistryService) UpdateRegistry(caller string, administrators []string, assets []AssetInput) (*models.ChallengeRegistry, error) {
	var updated *models.ChallengeRegistry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		registry, err := s.Load(tx)
		if err != nil {
			return err
		}
		if !registry.IsAdministrator(caller) {
			return ErrOnlyAdministrator
		}

		registry.SetAdministrators(administrators)
		if err := tx.Model(&models.ChallengeRegistry{}).
			Where("id = ?", registry.ID).
			Update("administrators", registry.Administrators).Error; err != nil {
			return err
		}

		if err := tx.Where("registry_id = ?", registry.ID).Delete(&models.AssetDescriptor{}).Error; err != nil {
			return err
		}
		registry.Assets = nil
		for _, asset := range assets {
			if asset.AssetID == "" {
				return fmt.Errorf("%w: asset_id is required", ErrInvalidValue)
			}
			descriptor := models.AssetDescriptor{
				AssetID:      asset.AssetID,
				RegistryID:   registry.ID,
				VaultAddress: utils.DeriveVaultAddress(asset.AssetID),
				Enabled:      asset.Enabled,
			}
			if err := tx.Create(&descriptor).Error; err != nil {
				return err
			}
			if err := s.Ledger.EnsureVault(tx, asset.AssetID, descriptor.VaultAddress); err != nil {
				return err
			}
			registry.Assets = append(registry.Assets, descriptor)
		}

		updated = registry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:  models.EventRegistryUpdated,
		Actor: caller,
	})

	return updated, nil
}

// RegisterAsset appends one asset to the whitelist and creates its vault.
// Registering an already known asset is an idempotence violation.
func (s *RegistryService) RegisterAsset(caller, assetID string) (*models.AssetDescriptor, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset_id is required", ErrInvalidValue)
	}

	var descriptor models.AssetDescriptor
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		registry, err := s.Load(tx)
		if err != nil {
			return err
		}
		if !registry.IsAdministrator(caller) {
			return ErrOnlyAdministrator
		}
		if registry.IsAssetRegistered(assetID) {
			return ErrAssetAlreadyRegistered
		}

		descriptor = models.AssetDescriptor{
			AssetID:      assetID,
			RegistryID:   registry.ID,
			VaultAddress: utils.DeriveVaultAddress(assetID),
			Enabled:      true,
		}
		if err := tx.Create(&descriptor).Error; err != nil {
			return err
		}
		return s.Ledger.EnsureVault(tx, assetID, descriptor.VaultAddress)
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:    models.EventVaultCreated,
		Actor:   caller,
		AssetID: assetID,
	})

	return &descriptor, nil
}

// --- Handlers ---

// Initialize bootstraps the registry with the caller as owner.
func (s *RegistryService) Initialize(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req struct {
		Administrators []string     `json:"administrators"`
		Assets         []AssetInput `json:"assets"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	registry, err := s.InitializeRegistry(identity, req.Administrators, req.Assets)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(registry)
}

// Update replaces administrators and assets wholesale (Admin only).
func (s *RegistryService) Update(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req struct {
		Administrators []string     `json:"administrators"`
		Assets         []AssetInput `json:"assets"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	registry, err := s.UpdateRegistry(identity, req.Administrators, req.Assets)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(registry)
}

// Get returns the registry with its whitelist.
func (s *RegistryService) Get(c *fiber.Ctx) error {
	registry, err := s.Load(s.DB)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(registry)
}

// CreateAsset registers one new reward asset and its vault (Admin only).
func (s *RegistryService) CreateAsset(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req struct {
		AssetID string `json:"asset_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	descriptor, err := s.RegisterAsset(identity, req.AssetID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(descriptor)
}

// ListAssets returns the asset whitelist.
func (s *RegistryService) ListAssets(c *fiber.Ctx) error {
	registry, err := s.Load(s.DB)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(registry.Assets)
}
