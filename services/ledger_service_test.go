package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"challenge-platform-service/models"
	"challenge-platform-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferAuthority(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	vault := utils.DeriveVaultAddress("usdc")

	env.fund(t, "usdc", "bob", 100)

	// A user account can only be debited by itself.
	err := env.Ledger.Transfer(env.DB, "usdc", "bob", vault, "mallory", 10, "t-1")
	require.ErrorIs(t, err, ErrUnauthorizedTransfer)

	require.NoError(t, env.Ledger.Transfer(env.DB, "usdc", "bob", vault, "bob", 10, "t-2"))
	assert.Equal(t, int64(90), env.balance(t, "usdc", "bob"))
	assert.Equal(t, int64(10), env.vaultBalance(t, "usdc"))

	// Vault debits are only valid under the registry authority.
	err = env.Ledger.Transfer(env.DB, "usdc", vault, "bob", "bob", 5, "t-3")
	require.ErrorIs(t, err, ErrUnauthorizedTransfer)

	require.NoError(t, env.Ledger.Transfer(env.DB, "usdc", vault, "bob", models.RegistryAuthority, 5, "t-4"))
	assert.Equal(t, int64(95), env.balance(t, "usdc", "bob"))
	assert.Equal(t, int64(5), env.vaultBalance(t, "usdc"))
}

func TestTransferValidation(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	vault := utils.DeriveVaultAddress("usdc")

	env.fund(t, "usdc", "bob", 50)

	err := env.Ledger.Transfer(env.DB, "usdc", "bob", vault, "bob", 0, "t-1")
	require.ErrorIs(t, err, ErrInvalidValue)

	err = env.Ledger.Transfer(env.DB, "usdc", "bob", "bob", "bob", 10, "t-2")
	require.ErrorIs(t, err, ErrInvalidValue)

	err = env.Ledger.Transfer(env.DB, "usdc", "ghost", vault, "ghost", 10, "t-3")
	require.ErrorIs(t, err, ErrAccountNotFound)

	err = env.Ledger.Transfer(env.DB, "usdc", "bob", vault, "bob", 60, "t-4")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved and nothing was journaled.
	assert.Equal(t, int64(50), env.balance(t, "usdc", "bob"))
	var records int64
	require.NoError(t, env.DB.Model(&models.TransferRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, "owner-1", nil, "usdc")
	vault := utils.DeriveVaultAddress("usdc")

	env.fund(t, "usdc", "bob", 100)

	// Ten racing 30-unit debits against a 100-unit balance: the balance
	// read inside Transfer can be stale by the time the debit lands, so
	// only the conditional debit keeps the account from going negative.
	var wg sync.WaitGroup
	var succeeded int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ref := fmt.Sprintf("drain-%d", n)
			err := env.Ledger.Transfer(env.DB, "usdc", "bob", vault, "bob", 30, ref)
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}(i)
	}
	wg.Wait()

	// 100 covers exactly three transfers of 30; everything else must fail.
	assert.Equal(t, int64(3), succeeded)
	assert.Equal(t, int64(10), env.balance(t, "usdc", "bob"))
	assert.Equal(t, int64(90), env.vaultBalance(t, "usdc"))
}

func TestCreditCreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Ledger.Credit("usdc", "bob", -5)
	require.ErrorIs(t, err, ErrInvalidValue)

	account, err := env.Ledger.Credit("usdc", "bob", 75)
	require.NoError(t, err)
	assert.Equal(t, int64(75), account.Balance)
	assert.False(t, account.IsVault)

	account, err = env.Ledger.Credit("usdc", "bob", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)

	_, err = env.Ledger.Balance("usdc", "ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)
}
