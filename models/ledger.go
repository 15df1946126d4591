package models

import "time"

// LedgerAccount is one custodial balance held by the platform ledger.
// Vault accounts (IsVault) may only be debited under the registry authority;
// user accounts only by themselves.
type LedgerAccount struct {
	Address   string    `gorm:"primaryKey" json:"address"`
	AssetID   string    `gorm:"index;not null" json:"asset_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	IsVault   bool      `gorm:"not null;default:false" json:"is_vault"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TransferRecord is the append-only journal of every balance movement.
// Reference carries the business context (e.g. "deposit:<challenge_id>")
// for reconciliation.
type TransferRecord struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	AssetID     string    `gorm:"index;not null" json:"asset_id"`
	Source      string    `gorm:"index;not null" json:"source"`
	Destination string    `gorm:"index;not null" json:"destination"`
	Authority   string    `gorm:"not null" json:"authority"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Reference   string    `json:"reference"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
