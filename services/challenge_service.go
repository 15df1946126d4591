// services/challenge_service.go
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

// ChallengeService owns the non-fund-moving lifecycle transitions:
// creation, cancellation and winner submission.
type ChallengeService struct {
	DB       *gorm.DB
	Registry *RegistryService
	Events   *EventLog
	Locks    *utils.KeyedMutex
}

func NewChallengeService(db *gorm.DB, registry *RegistryService, events *EventLog, locks *utils.KeyedMutex) *ChallengeService {
	return &ChallengeService{DB: db, Registry: registry, Events: events, Locks: locks}
}

// LoadChallenge fetches one challenge with its player ledger.
func LoadChallenge(db *gorm.DB, challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := db.Preload("Players").First(&challenge, "id = ?", challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// CreateChallenge allocates a new escrow campaign in the created state.
// The reward asset must be enabled in the registry at call time; disabling
// it later does not affect challenges already created.
func (s *ChallengeService) CreateChallenge(challengeID, owner string, minDeposit int64, rewardAssetID string) (*models.Challenge, error) {
	if challengeID == "" {
		return nil, fmt.Errorf("%w: challenge id is required", ErrInvalidValue)
	}
	if minDeposit < 0 {
		return nil, fmt.Errorf("%w: min_deposit cannot be negative", ErrInvalidValue)
	}

	var challenge models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		registry, err := s.Registry.Load(tx)
		if err != nil {
			return err
		}
		if !registry.IsAssetEnabled(rewardAssetID) {
			return ErrAssetNotAllowed
		}

		var existing models.Challenge
		err = tx.First(&existing, "id = ?", challengeID).Error
		if err == nil {
			return ErrChallengeAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		challenge = models.Challenge{
			ID:            challengeID,
			Owner:         owner,
			MinDeposit:    minDeposit,
			RewardAssetID: rewardAssetID,
			Status:        models.ChallengeStatusCreated,
		}
		if err := tx.Create(&challenge).Error; err != nil {
			return err
		}

		// Invariant re-check on the just-written state, not a user-facing branch.
		if challenge.ID == "" || challenge.Owner == "" || utils.DeriveVaultAddress(challenge.RewardAssetID) == "" {
			return ErrInvalidValue
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventChallengeCreated,
		ChallengeID: challenge.ID,
		Actor:       owner,
		AssetID:     rewardAssetID,
	})

	log.Printf("[CHALLENGE] %s created by %s (min deposit %d, asset %s)", challenge.ID, owner, minDeposit, rewardAssetID)
	return &challenge, nil
}

// CancelChallenge switches a challenge onto the cancellation branch. Only
// the owner can cancel, and only before finalization. Cancellation does not
// refund anyone: it unlocks the per-player withdrawal path.
func (s *ChallengeService) CancelChallenge(challengeID, caller string) (*models.Challenge, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var challenge *models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !challenge.IsCancelableFor(caller) {
			return ErrChallengeCannotBeCanceled
		}

		challenge.Status = models.ChallengeStatusCanceled
		return tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("status", models.ChallengeStatusCanceled).Error
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventChallengeCanceled,
		ChallengeID: challengeID,
		Actor:       caller,
	})

	return challenge, nil
}

// SubmitWinners designates the winner set and finalizes the challenge in
// one shot. Callable by a registry administrator or the challenge owner,
// and only from the created state, so the canceled branch can never be
// re-entered afterward. Every submitted winner must already hold a player
// entry: an identity that never deposited is rejected outright rather than
// silently skipped, so the winner count is never under-counted.
func (s *ChallengeService) SubmitWinners(challengeID, caller string, winners []string) (*models.Challenge, error) {
	unlock := s.Locks.Lock(challengeID)
	defer unlock()

	var challenge *models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		registry, err := s.Registry.Load(tx)
		if err != nil {
			return err
		}

		challenge, err = LoadChallenge(tx, challengeID)
		if err != nil {
			return err
		}

		if !registry.IsAdministrator(caller) && !challenge.IsOwner(caller) {
			return ErrInvalidValue
		}
		if !challenge.IsOpenForParticipants() {
			return ErrInvalidValue
		}

		for _, winner := range winners {
			player := challenge.FindPlayer(winner)
			if player == nil {
				return fmt.Errorf("%w: %s", ErrWinnerNotParticipant, winner)
			}
			player.IsWinner = true
			if err := tx.Model(&models.PlayerEntry{}).
				Where("challenge_id = ? AND identity = ?", challengeID, winner).
				Update("is_winner", true).Error; err != nil {
				return err
			}
		}

		challenge.Status = models.ChallengeStatusFinalized
		return tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("status", models.ChallengeStatusFinalized).Error
	})
	if err != nil {
		return nil, err
	}

	s.Events.Append(models.AuditEvent{
		Type:        models.EventChallengeFinalized,
		ChallengeID: challengeID,
		Actor:       caller,
	})

	log.Printf("[CHALLENGE] %s finalized by %s with %d winner(s)", challengeID, caller, len(winners))
	return challenge, nil
}

// --- Handlers ---

// Create allocates a new challenge owned by the caller.
func (s *ChallengeService) Create(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req struct {
		ID            string `json:"id"`
		MinDeposit    int64  `json:"min_deposit"`
		RewardAssetID string `json:"reward_asset_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	challenge, err := s.CreateChallenge(req.ID, identity, req.MinDeposit, req.RewardAssetID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(challenge)
}

// Cancel moves a challenge onto the withdrawal branch (owner only).
func (s *ChallengeService) Cancel(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	challenge, err := s.CancelChallenge(c.Params("id"), identity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(challenge)
}

// Winners finalizes the challenge with the submitted winner list.
func (s *ChallengeService) Winners(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)

	var req struct {
		Winners []string `json:"winners"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	challenge, err := s.SubmitWinners(c.Params("id"), identity, req.Winners)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(challenge)
}

// GetByID returns one challenge with its player ledger.
func (s *ChallengeService) GetByID(c *fiber.Ctx) error {
	challenge, err := LoadChallenge(s.DB, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(challenge)
}

// List returns all challenges, newest first.
func (s *ChallengeService) List(c *fiber.Ctx) error {
	var challenges []models.Challenge
	query := s.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&challenges).Error; err != nil {
		log.Printf("[CHALLENGE] DB error listing challenges: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch challenges"})
	}
	return c.JSON(challenges)
}
