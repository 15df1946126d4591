package models

import (
	"time"
)

// ChallengeStatus is the lifecycle state of a challenge.
// Reachable transitions: created -> canceled | finalized,
// canceled -> withdrawn, finalized -> claimed. Once one of the two
// branches is taken the other is permanently unreachable.
type ChallengeStatus string

const (
	ChallengeStatusCreated   ChallengeStatus = "created"
	ChallengeStatusFinalized ChallengeStatus = "finalized"
	ChallengeStatusCanceled  ChallengeStatus = "canceled"
	ChallengeStatusClaimed   ChallengeStatus = "claimed"
	ChallengeStatusWithdrawn ChallengeStatus = "withdrawn"
)

// PlayerEntry is the per-identity ledger record within one challenge.
// It records claim entitlement, not a live balance: payouts never decrease
// TotalDeposit.
type PlayerEntry struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID   string    `gorm:"not null;uniqueIndex:idx_challenge_player" json:"challenge_id"`
	Identity      string    `gorm:"not null;uniqueIndex:idx_challenge_player" json:"identity"`
	TotalDeposit  int64     `gorm:"not null;default:0" json:"total_deposit"`
	IsWinner      bool      `gorm:"not null;default:false" json:"is_winner"`
	RewardClaimed bool      `gorm:"not null;default:false" json:"reward_claimed"`
	Withdrawn     bool      `gorm:"not null;default:false" json:"withdrawn"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Challenge is one escrow campaign keyed by a caller-supplied id.
// PrizePool holds everything deposited or donated; DonatePool is the
// donation subset and never exceeds PrizePool.
type Challenge struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	Owner         string          `gorm:"index;not null" json:"owner"`
	MinDeposit    int64           `gorm:"not null;default:0" json:"min_deposit"`
	RewardAssetID string          `gorm:"not null" json:"reward_asset_id"`
	PrizePool     int64           `gorm:"not null;default:0" json:"prize_pool"`
	DonatePool    int64           `gorm:"not null;default:0" json:"donate_pool"`
	Status        ChallengeStatus `gorm:"not null;default:'created'" json:"status"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	Players []PlayerEntry `json:"players,omitempty" gorm:"foreignKey:ChallengeID"`
}

// IsOpenForParticipants reports whether deposits and donations are accepted.
func (c *Challenge) IsOpenForParticipants() bool {
	return c.Status == ChallengeStatusCreated
}

// IsOpenForClaim reports whether winners may claim rewards.
func (c *Challenge) IsOpenForClaim() bool {
	return c.Status == ChallengeStatusFinalized
}

// IsOpenForWithdrawal reports whether players may recover their stake.
func (c *Challenge) IsOpenForWithdrawal() bool {
	return c.Status == ChallengeStatusCanceled
}

// IsOwner reports whether identity owns the challenge.
func (c *Challenge) IsOwner(identity string) bool {
	return identity != "" && c.Owner == identity
}

// IsCancelableFor reports whether identity may cancel the challenge now.
// Only the owner can cancel, and only before the terminal branch is chosen.
func (c *Challenge) IsCancelableFor(identity string) bool {
	return c.IsOpenForParticipants() && c.IsOwner(identity)
}

// FindPlayer returns the entry for identity, or nil if it never deposited.
func (c *Challenge) FindPlayer(identity string) *PlayerEntry {
	for i := range c.Players {
		if c.Players[i].Identity == identity {
			return &c.Players[i]
		}
	}
	return nil
}

// IsPlayer reports whether identity has a player entry.
func (c *Challenge) IsPlayer(identity string) bool {
	return c.FindPlayer(identity) != nil
}

// IsWinner reports whether identity is a designated winner.
func (c *Challenge) IsWinner(identity string) bool {
	p := c.FindPlayer(identity)
	return p != nil && p.IsWinner
}

// AddPlayer appends a fresh entry for identity. The caller must have
// checked membership; a duplicate entry is a duplicate-participation error.
func (c *Challenge) AddPlayer(id, identity string, totalDeposit int64) *PlayerEntry {
	c.Players = append(c.Players, PlayerEntry{
		ID:           id,
		ChallengeID:  c.ID,
		Identity:     identity,
		TotalDeposit: totalDeposit,
	})
	return &c.Players[len(c.Players)-1]
}

// TotalWinners counts designated winners.
func (c *Challenge) TotalWinners() int64 {
	var n int64
	for i := range c.Players {
		if c.Players[i].IsWinner {
			n++
		}
	}
	return n
}

// TotalUnclaimedWinners counts winners that have not claimed yet.
func (c *Challenge) TotalUnclaimedWinners() int64 {
	var n int64
	for i := range c.Players {
		if c.Players[i].IsWinner && !c.Players[i].RewardClaimed {
			n++
		}
	}
	return n
}

// TotalUnwithdrawnPlayers counts players that have not withdrawn yet.
func (c *Challenge) TotalUnwithdrawnPlayers() int64 {
	var n int64
	for i := range c.Players {
		if !c.Players[i].Withdrawn {
			n++
		}
	}
	return n
}

// TotalPlayerDeposits sums every player's staked amount.
func (c *Challenge) TotalPlayerDeposits() int64 {
	var sum int64
	for i := range c.Players {
		sum += c.Players[i].TotalDeposit
	}
	return sum
}

// PrizeFor computes the reward owed to identity right now. The split is
// PrizePool / total winners using floor division; the indivisible remainder
// stays in the vault and is never distributed. A winner that already claimed
// evaluates to zero, which is what makes claiming idempotent.
func (c *Challenge) PrizeFor(identity string) int64 {
	p := c.FindPlayer(identity)
	if p == nil || !p.IsWinner || p.RewardClaimed {
		return 0
	}
	winners := c.TotalWinners()
	if winners == 0 {
		return 0
	}
	return c.PrizePool / winners
}

// WithdrawalFor computes the stake identity can recover after cancellation.
// Zero once withdrawn, same idempotence-by-zero pattern as PrizeFor.
func (c *Challenge) WithdrawalFor(identity string) int64 {
	p := c.FindPlayer(identity)
	if p == nil || p.Withdrawn {
		return 0
	}
	return p.TotalDeposit
}
