// services/scheduler.go
package services

import (
	"log"
	"time"

	"challenge-platform-service/models"
	"challenge-platform-service/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartConservationAudit runs a periodic read-only check of the fund
// accounting invariants. It never mutates anything; a mismatch is a bug
// upstream and is logged loudly for operators.
func (s *EscrowService) StartConservationAudit() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: prize_pool must equal player deposits + donations for
	// every challenge that has not paid out yet, and each vault must cover
	// the pools parked on it.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var challenges []models.Challenge
			err := s.DB.Preload("Players").
				Where("status IN ?", []models.ChallengeStatus{
					models.ChallengeStatusCreated,
					models.ChallengeStatusCanceled,
				}).
				Find(&challenges).Error
			if err != nil {
				log.Printf("❌ [AUDIT] DB error: %v", err)
				return
			}

			vaultLiability := map[string]int64{}
			for _, ch := range challenges {
				if ch.DonatePool > ch.PrizePool {
					log.Printf("❌ [AUDIT] challenge %s: donate pool %d exceeds prize pool %d", ch.ID, ch.DonatePool, ch.PrizePool)
				}
				if got, want := ch.PrizePool, ch.TotalPlayerDeposits()+ch.DonatePool; got != want {
					log.Printf("❌ [AUDIT] challenge %s: prize pool %d != deposits+donations %d", ch.ID, got, want)
				}
				if ch.Status == models.ChallengeStatusCreated {
					vaultLiability[ch.RewardAssetID] += ch.PrizePool
					continue
				}
				// Canceled: only unwithdrawn stakes and unswept donations are
				// still owed from the vault.
				for _, p := range ch.Players {
					if !p.Withdrawn {
						vaultLiability[ch.RewardAssetID] += p.TotalDeposit
					}
				}
				vaultLiability[ch.RewardAssetID] += ch.DonatePool
			}

			for assetID, liability := range vaultLiability {
				account, err := s.Ledger.Balance(assetID, utils.DeriveVaultAddress(assetID))
				if err != nil {
					log.Printf("❌ [AUDIT] vault lookup failed for asset %s: %v", assetID, err)
					continue
				}
				if account.Balance < liability {
					log.Printf("❌ [AUDIT] vault for asset %s holds %d but owes %d", assetID, account.Balance, liability)
				}
			}
		}),
	)
}
