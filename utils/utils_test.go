package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveVaultAddress(t *testing.T) {
	assert.Equal(t, "vault-usdc", DeriveVaultAddress("usdc"))
	assert.Equal(t, "vault-wrapped-sol", DeriveVaultAddress("Wrapped SOL"))

	// Same asset, same vault.
	assert.Equal(t, DeriveVaultAddress("bonk"), DeriveVaultAddress("bonk"))
	assert.NotEqual(t, DeriveVaultAddress("bonk"), DeriveVaultAddress("usdc"))
}

func TestDeriveArchiveKey(t *testing.T) {
	assert.Equal(t, "audit-events/batch-1.json", DeriveArchiveKey("", "batch-1"))
	assert.Equal(t, "prod-exports/batch-2.json", DeriveArchiveKey("Prod Exports", "batch-2"))
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	locks := NewKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("challenge-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := NewKeyedMutex()

	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	// Holding "a" must not block "b".
	<-done
	unlockA()
}
