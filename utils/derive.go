package utils

import (
	"fmt"

	"github.com/gosimple/slug"
)

// DeriveVaultAddress maps an asset id to its custodial vault address.
// The derivation is content-addressed: the same asset always yields the
// same vault, so lookups never depend on stored references alone.
func DeriveVaultAddress(assetID string) string {
	return fmt.Sprintf("vault-%s", slug.Make(assetID))
}

// DeriveArchiveKey builds the R2 object key for one audit-log export batch.
func DeriveArchiveKey(prefix, batchID string) string {
	if prefix == "" {
		prefix = "audit-events"
	}
	return fmt.Sprintf("%s/%s.json", slug.Make(prefix), batchID)
}
