package models

import (
	"time"

	"github.com/google/uuid"
)

// FileEntry is one logical upload. Two kinds of rows share the table:
//
//	Original (IsReference=false): owns the physical bytes in the blob store.
//	Reference (IsReference=true): borrows them; OriginalID points at the
//	current original for the same ContentHash.
//
// Only one original may exist per distinct ContentHash at any instant; the
// store enforces this under a per-fingerprint lock.
type FileEntry struct {
	ID uuid.UUID `db:"id" json:"id"`

	// Owning principal; never empty for a persisted row
	OwnerID string `db:"owner_id" json:"user_id"`

	// User-visible name captured at upload time
	Name string `db:"name" json:"original_filename"`

	// MIME type (e.g. "application/pdf")
	MediaType string `db:"media_type" json:"file_type"`

	// Size in bytes of the uploaded content
	Size int64 `db:"size" json:"size"`

	// Lowercase hex SHA-256 of the exact byte content
	ContentHash string `db:"content_hash" json:"file_hash"`

	// Dedup relation
	IsReference bool       `db:"is_reference" json:"is_reference"`
	OriginalID  *uuid.UUID `db:"original_id" json:"original_file"`

	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`

	// Total number of rows sharing ContentHash (original included).
	// Computed by query, never stored.
	ReferenceCount int64 `db:"reference_count" json:"reference_count"`
}

// ListFilter narrows an owner-scoped listing. All set predicates are ANDed.
type ListFilter struct {
	// Case-insensitive substring match on Name
	Search string
	// Exact match on MediaType
	MediaType string
	// Inclusive size range in bytes
	MinSize *int64
	MaxSize *int64
	// Inclusive UploadedAt range
	Since *time.Time
	Until *time.Time
}

// StorageStats summarizes an owner's dedup-aware storage accounting.
// All four values are recomputed from FileEntry rows on every call.
type StorageStats struct {
	OwnerID string `json:"user_id"`
	// Bytes of unique content the owner stores (one size per distinct hash)
	TotalStorageUsed int64 `json:"total_storage_used"`
	// Bytes over every upload, duplicates included
	OriginalStorageUsed int64 `json:"original_storage_used"`
	// max(OriginalStorageUsed - TotalStorageUsed, 0)
	StorageSavings int64 `json:"storage_savings"`
	// StorageSavings / OriginalStorageUsed * 100, rounded to two decimals
	SavingsPercentage float64 `json:"savings_percentage"`
}
