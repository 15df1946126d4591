package models

import (
	"strings"
	"time"
)

// RegistryKey is the fixed primary key of the singleton platform registry row.
const RegistryKey = "platform"

// RegistryAuthority is the ledger identity allowed to debit challenge vaults.
// The ledger service checks transfer authority against this value; the
// platform never holds a per-vault key.
const RegistryAuthority = "registry:platform"

// ChallengeRegistry is the platform-level governance record: who may
// administer challenges and which reward assets are whitelisted.
// Exactly one row exists (key = RegistryKey); a second initialization
// attempt must be rejected.
type ChallengeRegistry struct {
	ID             string `gorm:"primaryKey" json:"id"`
	Owner          string `gorm:"not null" json:"owner"`
	WasInitialized bool   `gorm:"not null;default:false" json:"was_initialized"`
	// Administrators is a comma-separated identity list (same convention as
	// the X-User-Roles header parsed by the middleware).
	Administrators string    `gorm:"type:text" json:"administrators"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Assets []AssetDescriptor `json:"assets,omitempty" gorm:"foreignKey:RegistryID"`
}

// AssetDescriptor is one whitelisted reward asset and its custodial vault.
// The set is append-only through asset registration; Enabled can be toggled
// by a registry update but descriptors are never removed individually.
type AssetDescriptor struct {
	AssetID      string    `gorm:"primaryKey" json:"asset_id"`
	RegistryID   string    `gorm:"index;not null" json:"-"`
	VaultAddress string    `gorm:"uniqueIndex;not null" json:"vault_address"`
	Enabled      bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AdministratorList splits the stored administrator set into identities.
func (r *ChallengeRegistry) AdministratorList() []string {
	var admins []string
	for _, a := range strings.Split(r.Administrators, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			admins = append(admins, a)
		}
	}
	return admins
}

// SetAdministrators replaces the administrator set wholesale.
func (r *ChallengeRegistry) SetAdministrators(admins []string) {
	cleaned := make([]string, 0, len(admins))
	for _, a := range admins {
		a = strings.TrimSpace(a)
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	r.Administrators = strings.Join(cleaned, ",")
}

// IsAdministrator reports whether identity may administer the platform.
// The owner is implicitly an administrator even when absent from the set.
func (r *ChallengeRegistry) IsAdministrator(identity string) bool {
	if identity == "" {
		return false
	}
	if r.Owner == identity {
		return true
	}
	for _, a := range r.AdministratorList() {
		if a == identity {
			return true
		}
	}
	return false
}

// IsAssetRegistered reports whether assetID already has a descriptor.
func (r *ChallengeRegistry) IsAssetRegistered(assetID string) bool {
	for _, a := range r.Assets {
		if a.AssetID == assetID {
			return true
		}
	}
	return false
}

// IsAssetEnabled reports whether assetID is whitelisted and currently enabled.
func (r *ChallengeRegistry) IsAssetEnabled(assetID string) bool {
	for _, a := range r.Assets {
		if a.AssetID == assetID && a.Enabled {
			return true
		}
	}
	return false
}

// Asset returns the descriptor for assetID. Callers are expected to have
// checked registration first; ok is false otherwise.
func (r *ChallengeRegistry) Asset(assetID string) (AssetDescriptor, bool) {
	for _, a := range r.Assets {
		if a.AssetID == assetID {
			return a, true
		}
	}
	return AssetDescriptor{}, false
}
