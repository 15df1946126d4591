package services

import (
	"testing"

	"challenge-platform-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositRules(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 10, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 100)

	_, err = env.Escrow.Deposit("weekly-1", "bob", 5)
	require.ErrorIs(t, err, ErrMinDepositNotReached)

	challenge, err := env.Escrow.Deposit("weekly-1", "bob", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), challenge.PrizePool)
	require.NotNil(t, challenge.FindPlayer("bob"))
	assert.Equal(t, int64(30), challenge.FindPlayer("bob").TotalDeposit)

	// Second deposit tops up the same entry, never duplicates it.
	challenge, err = env.Escrow.Deposit("weekly-1", "bob", 20)
	require.NoError(t, err)
	assert.Len(t, challenge.Players, 1)
	assert.Equal(t, int64(50), challenge.FindPlayer("bob").TotalDeposit)

	assert.Equal(t, int64(50), env.vaultBalance(t, "usdc"))
	assert.Equal(t, int64(50), env.balance(t, "usdc", "bob"))
}

func TestDepositFailedTransferLeavesLedgerUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 10, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 20)

	_, err = env.Escrow.Deposit("weekly-1", "bob", 50)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Zero(t, challenge.PrizePool)
	assert.Empty(t, challenge.Players)
	assert.Equal(t, int64(20), env.balance(t, "usdc", "bob"))
	assert.Zero(t, env.vaultBalance(t, "usdc"))
}

func TestDepositClosedChallenge(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 0, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 100)
	_, err = env.Escrow.Deposit("weekly-1", "bob", 10)
	require.NoError(t, err)

	_, err = env.Challenges.CancelChallenge("weekly-1", "alice")
	require.NoError(t, err)

	_, err = env.Escrow.Deposit("weekly-1", "bob", 10)
	require.ErrorIs(t, err, ErrDepositNotAvailable)
	_, err = env.Escrow.Donate("weekly-1", "bob", 10)
	require.ErrorIs(t, err, ErrDepositNotAvailable)
}

func TestConservationAcrossDepositsAndDonations(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 500)
	env.fund(t, "usdc", "carol", 500)

	steps := []struct {
		donate bool
		actor  string
		amount int64
	}{
		{false, "bob", 100},
		{true, "carol", 25},
		{false, "carol", 60},
		{false, "bob", 40},
		{true, "bob", 10},
	}

	for _, step := range steps {
		var challenge *models.Challenge
		var err error
		if step.donate {
			challenge, err = env.Escrow.Donate("weekly-1", step.actor, step.amount)
		} else {
			challenge, err = env.Escrow.Deposit("weekly-1", step.actor, step.amount)
		}
		require.NoError(t, err)

		// prize_pool == sum(player deposits) + donation pool after each call.
		assert.Equal(t, challenge.PrizePool, challenge.TotalPlayerDeposits()+challenge.DonatePool)
		assert.Equal(t, challenge.PrizePool, env.vaultBalance(t, "usdc"))
		assert.LessOrEqual(t, challenge.DonatePool, challenge.PrizePool)
	}

	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, int64(235), challenge.PrizePool)
	assert.Equal(t, int64(35), challenge.DonatePool)
	// Donations never create player entries.
	assert.Len(t, challenge.Players, 2)
}

func TestClaimSplitRounding(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	winners := []string{"w1", "w2", "w3"}
	for _, w := range winners {
		env.fund(t, "usdc", w, 100)
	}
	_, err = env.Escrow.Deposit("weekly-1", "w1", 34)
	require.NoError(t, err)
	_, err = env.Escrow.Deposit("weekly-1", "w2", 33)
	require.NoError(t, err)
	_, err = env.Escrow.Deposit("weekly-1", "w3", 33)
	require.NoError(t, err)

	_, err = env.Challenges.SubmitWinners("weekly-1", "alice", winners)
	require.NoError(t, err)

	// 100 split three ways floors to 33 for every winner.
	for _, w := range winners {
		amount, err := env.Escrow.Claim("weekly-1", w)
		require.NoError(t, err)
		assert.Equal(t, int64(33), amount)
	}

	// 99 paid out, the indivisible 1 stays in the vault for good.
	assert.Equal(t, int64(1), env.vaultBalance(t, "usdc"))

	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusClaimed, challenge.Status)
}

func TestClaimIdempotence(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 100)
	env.fund(t, "usdc", "carol", 100)
	_, err = env.Escrow.Deposit("weekly-1", "bob", 50)
	require.NoError(t, err)
	_, err = env.Escrow.Deposit("weekly-1", "carol", 50)
	require.NoError(t, err)

	_, err = env.Challenges.SubmitWinners("weekly-1", "alice", []string{"bob", "carol"})
	require.NoError(t, err)

	// Non-winners cannot claim, participants or not.
	_, err = env.Escrow.Claim("weekly-1", "stranger")
	require.ErrorIs(t, err, ErrClaimNotAvailable)

	amount, err := env.Escrow.Claim("weekly-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(50), amount)
	assert.Equal(t, int64(100), env.balance(t, "usdc", "bob"))

	// The repeat claim computes a zero share and fails with no transfer.
	_, err = env.Escrow.Claim("weekly-1", "bob")
	require.ErrorIs(t, err, ErrClaimNotAvailable)
	assert.Equal(t, int64(100), env.balance(t, "usdc", "bob"))

	var transfers int64
	require.NoError(t, env.DB.Model(&models.TransferRecord{}).
		Where("reference = ? AND destination = ?", "claim:weekly-1", "bob").
		Count(&transfers).Error)
	assert.Equal(t, int64(1), transfers)

	// Challenge stays finalized until the last winner claims.
	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusFinalized, challenge.Status)

	_, err = env.Escrow.Claim("weekly-1", "carol")
	require.NoError(t, err)
	challenge, err = LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusClaimed, challenge.Status)
}

func TestWithdrawalIsStatusGated(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", []string{"admin-1"}, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 100)
	_, err = env.Escrow.Deposit("weekly-1", "bob", 40)
	require.NoError(t, err)

	// Nobody can withdraw while the challenge is open: not the player, not
	// the owner, not an administrator.
	for _, caller := range []string{"bob", "alice", "admin-1", "owner-1"} {
		_, err = env.Escrow.Withdraw("weekly-1", caller)
		require.ErrorIs(t, err, ErrWithdrawalNotAvailable, "caller %s", caller)
	}

	_, err = env.Challenges.SubmitWinners("weekly-1", "alice", []string{"bob"})
	require.NoError(t, err)

	// Finalized challenges never open the withdrawal path either.
	_, err = env.Escrow.Withdraw("weekly-1", "bob")
	require.ErrorIs(t, err, ErrWithdrawalNotAvailable)
}

func TestWithdrawAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "bob", 100)
	env.fund(t, "usdc", "carol", 100)
	_, err = env.Escrow.Deposit("weekly-1", "bob", 40)
	require.NoError(t, err)
	_, err = env.Escrow.Deposit("weekly-1", "carol", 60)
	require.NoError(t, err)

	_, err = env.Challenges.CancelChallenge("weekly-1", "alice")
	require.NoError(t, err)

	// Cancellation refunds nobody by itself: each player pulls their own stake.
	assert.Equal(t, int64(100), env.vaultBalance(t, "usdc"))

	// Non-participants have nothing to withdraw.
	_, err = env.Escrow.Withdraw("weekly-1", "stranger")
	require.ErrorIs(t, err, ErrWithdrawalNotAvailable)

	amount, err := env.Escrow.Withdraw("weekly-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(40), amount)
	assert.Equal(t, int64(100), env.balance(t, "usdc", "bob"))

	_, err = env.Escrow.Withdraw("weekly-1", "bob")
	require.ErrorIs(t, err, ErrWithdrawalNotAvailable)

	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusCanceled, challenge.Status)

	amount, err = env.Escrow.Withdraw("weekly-1", "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(60), amount)

	// Last withdrawal closes the branch.
	challenge, err = LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusWithdrawn, challenge.Status)
	assert.Zero(t, env.vaultBalance(t, "usdc"))
}

func TestAdminSweepDonations(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", []string{"admin-1"}, "usdc")
	_, err := env.Challenges.CreateChallenge("weekly-1", "alice", 1, "usdc")
	require.NoError(t, err)

	_, err = env.Escrow.SweepDonations("weekly-1", "stranger")
	require.ErrorIs(t, err, ErrOnlyAdministrator)

	// Nothing donated yet.
	_, err = env.Escrow.SweepDonations("weekly-1", "admin-1")
	require.ErrorIs(t, err, ErrWithdrawalNotAvailable)

	env.fund(t, "usdc", "bob", 100)
	_, err = env.Escrow.Deposit("weekly-1", "bob", 40)
	require.NoError(t, err)
	_, err = env.Escrow.Donate("weekly-1", "bob", 25)
	require.NoError(t, err)

	// The sweep is available while the challenge is still open.
	amount, err := env.Escrow.SweepDonations("weekly-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), amount)
	assert.Equal(t, int64(25), env.balance(t, "usdc", "admin-1"))

	challenge, err := LoadChallenge(env.DB, "weekly-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), challenge.PrizePool)
	assert.Zero(t, challenge.DonatePool)
	// Player stakes are untouched by the sweep.
	assert.Equal(t, int64(40), challenge.FindPlayer("bob").TotalDeposit)

	_, err = env.Escrow.SweepDonations("weekly-1", "admin-1")
	require.ErrorIs(t, err, ErrWithdrawalNotAvailable)
}

func TestEndToEndScenario(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")

	_, err := env.Challenges.CreateChallenge("season-final", "alice", 10, "usdc")
	require.NoError(t, err)

	env.fund(t, "usdc", "player-a", 10)
	env.fund(t, "usdc", "player-b", 20)

	_, err = env.Escrow.Deposit("season-final", "player-a", 10)
	require.NoError(t, err)
	_, err = env.Escrow.Deposit("season-final", "player-b", 20)
	require.NoError(t, err)

	_, err = env.Challenges.SubmitWinners("season-final", "alice", []string{"player-b"})
	require.NoError(t, err)

	amount, err := env.Escrow.Claim("season-final", "player-b")
	require.NoError(t, err)
	assert.Equal(t, int64(30), amount)
	assert.Equal(t, int64(30), env.balance(t, "usdc", "player-b"))
	assert.Zero(t, env.vaultBalance(t, "usdc"))

	// B was the only winner and has claimed: the challenge is closed.
	challenge, err := LoadChallenge(env.DB, "season-final")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusClaimed, challenge.Status)

	// The audit trail recorded the whole lifecycle.
	events, err := env.Events.ForChallenge("season-final")
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{
		models.EventChallengeCreated,
		models.EventFundsReceived,
		models.EventFundsReceived,
		models.EventChallengeFinalized,
		models.EventRewardClaimed,
	}, types)
}
