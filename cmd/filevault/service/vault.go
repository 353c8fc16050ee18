package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/filevault/filevault/cmd/filevault/models"
	"github.com/filevault/filevault/cmd/filevault/repository"
	"github.com/filevault/filevault/common/blobstore"
	"github.com/filevault/filevault/common/logger"
)

// TxRunner runs a function inside one atomic transaction. Either every row
// mutation made by fn becomes visible together, or none do.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntryStore is the persistence surface the vault mutates. Methods called
// inside a TxRunner transaction join it through the context.
type EntryStore interface {
	UsageStore

	Create(ctx context.Context, e *models.FileEntry) error
	GetOwned(ctx context.Context, ownerID string, id uuid.UUID) (*models.FileEntry, error)
	FindOriginalByHash(ctx context.Context, hash string) (*models.FileEntry, error)
	LockFingerprint(ctx context.Context, hash string) error
	SelectSiblingForPromotion(ctx context.Context, originalID uuid.UUID) (*models.FileEntry, error)
	Promote(ctx context.Context, id uuid.UUID) error
	RepointReferences(ctx context.Context, oldOriginal, newOriginal uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByHash(ctx context.Context, hash string) (int64, error)
	List(ctx context.Context, ownerID string, filter models.ListFilter) ([]*models.FileEntry, error)
	DistinctMediaTypes(ctx context.Context, ownerID string) ([]string, error)
}

// VaultService is the dedup store. For every distinct fingerprint it keeps
// exactly one original entry owning the physical bytes; byte-identical
// uploads become reference entries pointing at it. Deleting the original
// promotes a reference in its place, and the physical blob is removed only
// when the last entry for its fingerprint is gone.
type VaultService struct {
	tx      TxRunner
	entries EntryStore
	blobs   blobstore.Store
	quota   *QuotaAccountant
	log     *logger.Logger
}

// NewVaultService creates a new vault service
func NewVaultService(tx TxRunner, entries EntryStore, blobs blobstore.Store, quota *QuotaAccountant, log *logger.Logger) *VaultService {
	return &VaultService{
		tx:      tx,
		entries: entries,
		blobs:   blobs,
		quota:   quota,
		log:     log,
	}
}

// Create stores an upload for ownerID. The byte stream is fingerprinted
// first; inside one transaction the fingerprint is locked, the quota
// checked, and either a reference to the existing original or a fresh
// original plus its physical blob is created. On any failure nothing
// logical is persisted.
func (s *VaultService) Create(ctx context.Context, ownerID string, body io.Reader, name, mediaType string) (*models.FileEntry, error) {
	if ownerID == "" || body == nil {
		return nil, ErrInvalidInput
	}

	content, err := ResolveContent(body)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	entry := &models.FileEntry{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		MediaType:   mediaType,
		Size:        content.Size,
		ContentHash: content.Fingerprint,
		UploadedAt:  time.Now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Serialize against every other mutator of this fingerprint:
		// concurrent creates cannot both insert an original, and a racing
		// delete cannot promote or reclaim bytes underneath us.
		if err := s.entries.LockFingerprint(ctx, content.Fingerprint); err != nil {
			return err
		}

		if err := s.quota.Check(ctx, ownerID, content.Fingerprint, content.Size); err != nil {
			return err
		}

		original, err := s.entries.FindOriginalByHash(ctx, content.Fingerprint)
		switch {
		case err == nil:
			// Physical copy exists: new entry borrows it. Size and media
			// type come from this upload, not the original.
			entry.IsReference = true
			originalID := original.ID
			entry.OriginalID = &originalID

			if err := s.entries.Create(ctx, entry); err != nil {
				return err
			}

		case errors.Is(err, repository.ErrNoRows):
			// First copy of this content: persist the bytes under the
			// fingerprint, then the original row.
			reader, err := content.Reader()
			if err != nil {
				return err
			}
			if err := s.blobs.Put(ctx, content.Fingerprint, reader, content.Size); err != nil {
				return fmt.Errorf("failed to store physical content: %w", err)
			}

			if err := s.entries.Create(ctx, entry); err != nil {
				return err
			}

		default:
			return err
		}

		count, err := s.entries.CountByHash(ctx, content.Fingerprint)
		if err != nil {
			return err
		}
		entry.ReferenceCount = count

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("file entry created",
		"entry_id", entry.ID,
		"owner_id", ownerID,
		"hash", entry.ContentHash,
		"is_reference", entry.IsReference,
		"size", entry.Size,
	)

	return entry, nil
}

// Destroy deletes an owner-visible entry. Deleting the original for a
// fingerprint promotes its earliest reference to be the new original and
// re-points the remaining references at it, all inside the same
// transaction. When the last entry for a fingerprint goes away the physical
// blob is deleted too; a failure there is logged and swallowed, because the
// logical rows are the source of truth and an orphaned blob is a
// recoverable leak.
func (s *VaultService) Destroy(ctx context.Context, ownerID string, id uuid.UUID) error {
	if ownerID == "" {
		return ErrNotFound
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		// First load only discovers the fingerprint to lock
		target, err := s.entries.GetOwned(ctx, ownerID, id)
		if errors.Is(err, repository.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		hash := target.ContentHash
		if err := s.entries.LockFingerprint(ctx, hash); err != nil {
			return err
		}

		// Re-load under the lock: a racing Destroy may have removed or
		// promoted this entry while we waited.
		target, err = s.entries.GetOwned(ctx, ownerID, id)
		if errors.Is(err, repository.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if !target.IsReference {
			sibling, err := s.entries.SelectSiblingForPromotion(ctx, target.ID)
			switch {
			case err == nil:
				if err := s.entries.Promote(ctx, sibling.ID); err != nil {
					return err
				}
				if err := s.entries.RepointReferences(ctx, target.ID, sibling.ID); err != nil {
					return err
				}
				s.log.Info("reference promoted to original",
					"promoted_id", sibling.ID,
					"deleted_original_id", target.ID,
					"hash", hash,
				)
			case errors.Is(err, repository.ErrNoRows):
				// No references left; physical cleanup happens below
			default:
				return err
			}
		}

		if err := s.entries.Delete(ctx, target.ID); err != nil {
			return err
		}

		// Physical lifetime follows logical existence alone: re-check the
		// rows while still holding the fingerprint lock, never a counter.
		remaining, err := s.entries.CountByHash(ctx, hash)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := s.blobs.Delete(ctx, hash); err != nil {
				// Best effort: the logical delete stands either way
				s.log.Warn("failed to delete orphaned blob", "hash", hash, "error", err)
			} else {
				s.log.Info("physical content removed", "hash", hash)
			}
		}

		return nil
	})
}

// Get returns an owner-visible entry by id
func (s *VaultService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.FileEntry, error) {
	entry, err := s.entries.GetOwned(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the owner's entries, newest first, narrowed by the filter
func (s *VaultService) List(ctx context.Context, ownerID string, filter models.ListFilter) ([]*models.FileEntry, error) {
	return s.entries.List(ctx, ownerID, filter)
}

// StorageStats returns the owner's dedup-aware storage statistics
func (s *VaultService) StorageStats(ctx context.Context, ownerID string) (*models.StorageStats, error) {
	return s.quota.Stats(ctx, ownerID)
}

// DistinctMediaTypes returns the distinct media types of the owner's entries
func (s *VaultService) DistinctMediaTypes(ctx context.Context, ownerID string) ([]string, error) {
	return s.entries.DistinctMediaTypes(ctx, ownerID)
}

// OpenContent returns the entry plus a reader over its physical bytes.
// The caller closes the reader.
func (s *VaultService) OpenContent(ctx context.Context, ownerID string, id uuid.UUID) (*models.FileEntry, io.ReadCloser, error) {
	entry, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, entry.ContentHash)
	if errors.Is(err, blobstore.ErrNotFound) {
		// Logical row without physical bytes should not happen; report it
		// as missing rather than leaking backend details
		s.log.Error("blob missing for live entry", "entry_id", entry.ID, "hash", entry.ContentHash)
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open physical content: %w", err)
	}

	return entry, rc, nil
}
