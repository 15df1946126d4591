// services/escrow_service.go
package services

import (
	"fmt"
	"log"

	"challenge-platform-service/models"
	"challenge-platform-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EscrowService owns every fund-moving lifecycle operation. Each one runs
// under the challenge's keyed mutex and inside a single transaction, with
// the ledger transfer ordered before any pool or player mutation so a
// failed transfer leaves the books untouched.
type EscrowService struct {
	DB       *gorm.DB
	Registry *RegistryService
	Ledger   *LedgerService
	Events   *EventLog
	Locks    *utils.KeyedMutex
}

func NewEscrowService(db *gorm.DB, registry *RegistryService, ledger *LedgerService, events *EventLog, locks *utils.KeyedMutex) *EscrowService {
	return &EscrowService{DB: db, Registry: registry, Ledger: ledger, Events: events, Locks: locks}
}

// Deposit stakes amount into the challenge pool for caller. Only accepted
// while the challenge is open for participants and the amount reaches the
// configured minimum. The first deposit creates the caller's player entry.
func (s *EscrowService) Deposit(challengeID, caller string, amount int64) (*models.Challenge, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var challenge *models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !challenge.IsOpenForParticipants() {
			return ErrDepositNotAvailable
		}
		if amount < challenge.MinDeposit {
			return ErrMinDepositNotReached
		}

		vault := utils.DeriveVaultAddress(challenge.RewardAssetID)
		reference := fmt.Sprintf("deposit:%s", challengeID)
		if err := s.Ledger.Transfer(tx, challenge.RewardAssetID, caller, vault, caller, amount, reference); err != nil {
			return err
		}

		challenge.PrizePool += amount
		if err := tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("prize_pool", challenge.PrizePool).Error; err != nil {
			return err
		}

		player := challenge.FindPlayer(caller)
		if player == nil {
			player = challenge.AddPlayer(uuid.NewString(), caller, amount)
			return tx.Create(player).Error
		}
		player.TotalDeposit += amount
		return tx.Model(&models.PlayerEntry{}).
			Where("challenge_id = ? AND identity = ?", challengeID, caller).
			Update("total_deposit", player.TotalDeposit).Error
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventFundsReceived,
		ChallengeID: challengeID,
		Actor:       caller,
		AssetID:     challenge.RewardAssetID,
		Amount:      amount,
		Action:      models.ActionDeposit,
	})

	return challenge, nil
}

// Donate adds amount to the pools without granting winner eligibility.
// No minimum applies and no player entry is created.
func (s *EscrowService) Donate(challengeID, caller string, amount int64) (*models.Challenge, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var challenge *models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !challenge.IsOpenForParticipants() {
			return ErrDepositNotAvailable
		}

		vault := utils.DeriveVaultAddress(challenge.RewardAssetID)
		reference := fmt.Sprintf("donate:%s", challengeID)
		if err := s.Ledger.Transfer(tx, challenge.RewardAssetID, caller, vault, caller, amount, reference); err != nil {
			return err
		}

		challenge.PrizePool += amount
		challenge.DonatePool += amount
		return tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Updates(map[string]interface{}{
				"prize_pool":  challenge.PrizePool,
				"donate_pool": challenge.DonatePool,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventFundsReceived,
		ChallengeID: challengeID,
		Actor:       caller,
		AssetID:     challenge.RewardAssetID,
		Amount:      amount,
		Action:      models.ActionDonate,
	})

	return challenge, nil
}

// Claim pays the caller's share of the prize pool. The share is the pool
// divided by the winner count at claim time; the pool itself is not reduced
// by claims, so every winner resolves the same amount and the indivisible
// remainder stays in the vault. A repeat claim computes a zero share and
// fails, with no second transfer. The last winner to claim closes the
// challenge.
func (s *EscrowService) Claim(challengeID, caller string) (int64, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var rewardAmount int64
	var assetID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		challenge, err := LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !challenge.IsOpenForClaim() {
			return ErrClaimNotAvailable
		}
		if !challenge.IsWinner(caller) {
			return ErrClaimNotAvailable
		}

		rewardAmount = challenge.PrizeFor(caller)
		if rewardAmount == 0 {
			return ErrClaimNotAvailable
		}
		assetID = challenge.RewardAssetID

		vault := utils.DeriveVaultAddress(assetID)
		reference := fmt.Sprintf("claim:%s", challengeID)
		if err := s.Ledger.Transfer(tx, assetID, vault, caller, models.RegistryAuthority, rewardAmount, reference); err != nil {
			return err
		}

		player := challenge.FindPlayer(caller)
		player.RewardClaimed = true
		if err := tx.Model(&models.PlayerEntry{}).
			Where("challenge_id = ? AND identity = ?", challengeID, caller).
			Update("reward_claimed", true).Error; err != nil {
			return err
		}

		if challenge.TotalUnclaimedWinners() == 0 {
			return tx.Model(&models.Challenge{}).
				Where("id = ?", challengeID).
				Update("status", models.ChallengeStatusClaimed).Error
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventRewardClaimed,
		ChallengeID: challengeID,
		Actor:       caller,
		AssetID:     assetID,
		Amount:      rewardAmount,
		Action:      models.ActionClaim,
	})

	log.Printf("[ESCROW] %s claimed %d from challenge %s", caller, rewardAmount, challengeID)
	return rewardAmount, nil
}

// Withdraw recovers the caller's own stake after cancellation. A repeat
// withdrawal computes a zero amount and fails. The last player to withdraw
// closes the challenge.
func (s *EscrowService) Withdraw(challengeID, caller string) (int64, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var withdrawalAmount int64
	var assetID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		challenge, err := LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !challenge.IsOpenForWithdrawal() {
			return ErrWithdrawalNotAvailable
		}
		if !challenge.IsPlayer(caller) {
			return ErrWithdrawalNotAvailable
		}

		withdrawalAmount = challenge.WithdrawalFor(caller)
		if withdrawalAmount == 0 {
			return ErrWithdrawalNotAvailable
		}
		assetID = challenge.RewardAssetID

		vault := utils.DeriveVaultAddress(assetID)
		reference := fmt.Sprintf("withdraw:%s", challengeID)
		if err := s.Ledger.Transfer(tx, assetID, vault, caller, models.RegistryAuthority, withdrawalAmount, reference); err != nil {
			return err
		}

		player := challenge.FindPlayer(caller)
		player.Withdrawn = true
		if err := tx.Model(&models.PlayerEntry{}).
			Where("challenge_id = ? AND identity = ?", challengeID, caller).
			Update("withdrawn", true).Error; err != nil {
			return err
		}

		if challenge.TotalUnwithdrawnPlayers() == 0 {
			return tx.Model(&models.Challenge{}).
				Where("id = ?", challengeID).
				Update("status", models.ChallengeStatusWithdrawn).Error
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventRewardClaimed,
		ChallengeID: challengeID,
		Actor:       caller,
		AssetID:     assetID,
		Amount:      withdrawalAmount,
		Action:      models.ActionWithdraw,
	})

	log.Printf("[ESCROW] %s withdrew %d from challenge %s", caller, withdrawalAmount, challengeID)
	return withdrawalAmount, nil
}

// SweepDonations moves the whole donation pool to the calling administrator.
// There is deliberately no status precondition here: donations are the
// platform's to collect in any state.
func (s *EscrowService) SweepDonations(challengeID, caller string) (int64, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var sweptAmount int64
	var assetID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		registry, err := s.Registry.Load(tx)
		if err != nil {
			return err
		}
		if !registry.IsAdministrator(caller) {
			return ErrOnlyAdministrator
		}

		challenge, err := LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}

		sweptAmount = challenge.DonatePool
		if sweptAmount == 0 {
			return ErrWithdrawalNotAvailable
		}
		assetID = challenge.RewardAssetID

		vault := utils.DeriveVaultAddress(assetID)
		reference := fmt.Sprintf("admin-sweep:%s", challengeID)
		if err := s.Ledger.Transfer(tx, assetID, vault, caller, models.RegistryAuthority, sweptAmount, reference); err != nil {
			return err
		}

		return tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Updates(map[string]interface{}{
				"prize_pool":  challenge.PrizePool - sweptAmount,
				"donate_pool": 0,
			}).Error
	})
	if err != nil {
		return 0, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventRewardClaimed,
		ChallengeID: challengeID,
		Actor:       caller,
		AssetID:     assetID,
		Amount:      sweptAmount,
		Action:      models.ActionAdminSweep,
	})

	log.Printf("[ESCROW] administrator %s swept %d donated from challenge %s", caller, sweptAmount, challengeID)
	return sweptAmount, nil
}

// --- Handlers ---

type amountRequest struct {
	Amount int64 `json:"amount"`
}

// DepositHandler stakes funds into a challenge for the caller.
func (s *EscrowService) DepositHandler(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	challenge, err := s.Deposit(c.Params("id"), identity, req.Amount)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(challenge)
}

// DonateHandler adds a pure donation to a challenge pool.
func (s *EscrowService) DonateHandler(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	challenge, err := s.Donate(c.Params("id"), identity, req.Amount)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(challenge)
}

// ClaimHandler pays out the caller's winner share.
func (s *EscrowService) ClaimHandler(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	amount, err := s.Claim(c.Params("id"), identity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "reward claimed", "amount": amount})
}

// WithdrawHandler returns the caller's stake after cancellation.
func (s *EscrowService) WithdrawHandler(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	amount, err := s.Withdraw(c.Params("id"), identity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "stake withdrawn", "amount": amount})
}

// SweepHandler collects the donation pool (Admin only).
func (s *EscrowService) SweepHandler(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	amount, err := s.SweepDonations(c.Params("id"), identity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "donations swept", "amount": amount})
}

// EventsHandler returns the audit trail of one challenge.
func (s *EscrowService) EventsHandler(c *fiber.Ctx) error {
	events, err := s.Events.ForChallenge(c.Params("id"))
	if err != nil {
		log.Printf("[ESCROW] DB error fetching events for %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch events"})
	}
	return c.JSON(events)
}
