package service

import (
	"context"
	"fmt"
	"math"

	"github.com/filevault/filevault/cmd/filevault/models"
	"github.com/filevault/filevault/common/logger"
)

// UsageStore is the slice of the entry store the accountant reads from
type UsageStore interface {
	// OwnerUsage returns the owner's deduped byte total (one representative
	// size per distinct fingerprint) and the raw total over every upload
	OwnerUsage(ctx context.Context, ownerID string) (deduped int64, raw int64, err error)
	// OwnerHasHash reports whether the owner already holds the fingerprint
	OwnerHasHash(ctx context.Context, ownerID, hash string) (bool, error)
}

// QuotaAccountant decides whether uploads fit in a per-owner byte quota.
// Accounting is dedup-aware: content the owner already holds costs nothing,
// and every total is recomputed from the persisted rows on each call so the
// rows stay the only source of truth.
type QuotaAccountant struct {
	store      UsageStore
	quotaBytes int64
	log        *logger.Logger
}

// NewQuotaAccountant creates a new quota accountant
func NewQuotaAccountant(store UsageStore, quotaBytes int64, log *logger.Logger) *QuotaAccountant {
	return &QuotaAccountant{
		store:      store,
		quotaBytes: quotaBytes,
		log:        log,
	}
}

// Check accepts or rejects a prospective upload of the given fingerprint and
// size. Returns ErrQuotaExceeded on rejection. Quotas are strictly
// per-owner: identical content held by other owners has no effect.
func (q *QuotaAccountant) Check(ctx context.Context, ownerID, fingerprint string, size int64) error {
	consumed, _, err := q.store.OwnerUsage(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to compute consumed bytes: %w", err)
	}

	alreadyOwned, err := q.store.OwnerHasHash(ctx, ownerID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to check owned fingerprints: %w", err)
	}

	// A duplicate of content the owner already has is free
	incremental := size
	if alreadyOwned {
		incremental = 0
	}

	if consumed+incremental > q.quotaBytes {
		q.log.Info("upload rejected by quota",
			"owner_id", ownerID,
			"consumed_bytes", consumed,
			"incremental_bytes", incremental,
			"quota_bytes", q.quotaBytes,
		)
		return ErrQuotaExceeded
	}

	return nil
}

// Stats computes the owner's storage statistics from the entry rows
func (q *QuotaAccountant) Stats(ctx context.Context, ownerID string) (*models.StorageStats, error) {
	deduped, raw, err := q.store.OwnerUsage(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute storage stats: %w", err)
	}

	savings := raw - deduped
	if savings < 0 {
		savings = 0
	}

	var pct float64
	if raw > 0 {
		pct = math.Round(float64(savings)/float64(raw)*100*100) / 100
	}

	return &models.StorageStats{
		OwnerID:             ownerID,
		TotalStorageUsed:    deduped,
		OriginalStorageUsed: raw,
		StorageSavings:      savings,
		SavingsPercentage:   pct,
	}, nil
}
