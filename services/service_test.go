package services

import (
	"fmt"
	"testing"

	"challenge-platform-service/models"
	"challenge-platform-service/utils"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service graph against an in-memory database.
type testEnv struct {
	DB         *gorm.DB
	Events     *EventLog
	Ledger     *LedgerService
	Registry   *RegistryService
	Challenges *ChallengeService
	Escrow     *EscrowService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.ChallengeRegistry{},
		&models.AssetDescriptor{},
		&models.Challenge{},
		&models.PlayerEntry{},
		&models.LedgerAccount{},
		&models.TransferRecord{},
		&models.AuditEvent{},
	))

	locks := utils.NewKeyedMutex()
	events := NewEventLog(db)
	ledger := NewLedgerService(db)
	registry := NewRegistryService(db, ledger, events)

	return &testEnv{
		DB:         db,
		Events:     events,
		Ledger:     ledger,
		Registry:   registry,
		Challenges: NewChallengeService(db, registry, events, locks),
		Escrow:     NewEscrowService(db, registry, ledger, events, locks),
	}
}

// bootstrap initializes the registry with one enabled asset and returns it.
func (e *testEnv) bootstrap(t *testing.T, owner string, administrators []string, assetID string) {
	t.Helper()
	_, err := e.Registry.InitializeRegistry(owner, administrators, []AssetInput{
		{AssetID: assetID, Enabled: true},
	})
	require.NoError(t, err)
}

// fund credits a participant account so it can stake into challenges.
func (e *testEnv) fund(t *testing.T, assetID, address string, amount int64) {
	t.Helper()
	_, err := e.Ledger.Credit(assetID, address, amount)
	require.NoError(t, err)
}

// balance returns the current balance of an account, zero if absent.
func (e *testEnv) balance(t *testing.T, assetID, address string) int64 {
	t.Helper()
	account, err := e.Ledger.Balance(assetID, address)
	if err != nil {
		return 0
	}
	return account.Balance
}

func (e *testEnv) vaultBalance(t *testing.T, assetID string) int64 {
	t.Helper()
	return e.balance(t, assetID, utils.DeriveVaultAddress(assetID))
}
