package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/filevault/common/logger"
)

type stubUsage struct {
	deduped int64
	raw     int64
	hashes  map[string]bool
	err     error
}

func (s *stubUsage) OwnerUsage(ctx context.Context, ownerID string) (int64, int64, error) {
	return s.deduped, s.raw, s.err
}

func (s *stubUsage) OwnerHasHash(ctx context.Context, ownerID, hash string) (bool, error) {
	return s.hashes[hash], s.err
}

func newAccountant(store *stubUsage, quota int64) *QuotaAccountant {
	return NewQuotaAccountant(store, quota, logger.New("error", "json"))
}

func TestQuotaCheck_WithinBudget(t *testing.T) {
	q := newAccountant(&stubUsage{deduped: 40, hashes: map[string]bool{}}, 100)

	assert.NoError(t, q.Check(context.Background(), "u1", "h1", 60))
}

func TestQuotaCheck_OverBudget(t *testing.T) {
	q := newAccountant(&stubUsage{deduped: 40, hashes: map[string]bool{}}, 100)

	err := q.Check(context.Background(), "u1", "h1", 61)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaCheck_OwnedContentIsFree(t *testing.T) {
	// Owner is fully at quota, but re-uploading owned content costs nothing
	q := newAccountant(&stubUsage{deduped: 100, hashes: map[string]bool{"h1": true}}, 100)

	assert.NoError(t, q.Check(context.Background(), "u1", "h1", 500))

	err := q.Check(context.Background(), "u1", "h2", 1)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaCheck_ZeroSizeAlwaysFitsAtQuota(t *testing.T) {
	q := newAccountant(&stubUsage{deduped: 100, hashes: map[string]bool{}}, 100)

	assert.NoError(t, q.Check(context.Background(), "u1", "h1", 0))
}

func TestQuotaCheck_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	q := newAccountant(&stubUsage{err: boom}, 100)

	err := q.Check(context.Background(), "u1", "h1", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuotaStats_Arithmetic(t *testing.T) {
	q := newAccountant(&stubUsage{deduped: 300, raw: 1000}, 1<<20)

	stats, err := q.Stats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", stats.OwnerID)
	assert.Equal(t, int64(300), stats.TotalStorageUsed)
	assert.Equal(t, int64(1000), stats.OriginalStorageUsed)
	assert.Equal(t, int64(700), stats.StorageSavings)
	assert.Equal(t, 70.0, stats.SavingsPercentage)
}

func TestQuotaStats_RoundsToTwoDecimals(t *testing.T) {
	q := newAccountant(&stubUsage{deduped: 2, raw: 3}, 1<<20)

	stats, err := q.Stats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 33.33, stats.SavingsPercentage)
}

func TestQuotaStats_NoUploads(t *testing.T) {
	q := newAccountant(&stubUsage{}, 1<<20)

	stats, err := q.Stats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.StorageSavings)
	assert.Equal(t, 0.0, stats.SavingsPercentage)
}
