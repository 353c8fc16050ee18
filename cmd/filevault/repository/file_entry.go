package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/filevault/filevault/cmd/filevault/models"
	"github.com/filevault/filevault/common/db"
)

// ErrNoRows is returned when a lookup matches nothing. Callers translate it
// into their own not-found signal.
var ErrNoRows = errors.New("no matching file entry")

// FileEntryRepository handles database operations for file entries.
// Every method runs against the transaction carried by ctx when called
// inside db.WithTx, and against the pool otherwise.
type FileEntryRepository struct {
	db *db.DB
}

// NewFileEntryRepository creates a new file entry repository
func NewFileEntryRepository(db *db.DB) *FileEntryRepository {
	return &FileEntryRepository{db: db}
}

// entryColumns is the select list shared by every row-returning query.
// reference_count is computed on read: all rows sharing the hash, the
// original included.
const entryColumns = `
	f.id, f.owner_id, f.name, f.media_type, f.size, f.content_hash,
	f.is_reference, f.original_id, f.uploaded_at,
	(SELECT COUNT(*) FROM file_entry c WHERE c.content_hash = f.content_hash) AS reference_count
`

func scanEntry(row pgx.Row) (*models.FileEntry, error) {
	e := &models.FileEntry{}
	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Name,
		&e.MediaType,
		&e.Size,
		&e.ContentHash,
		&e.IsReference,
		&e.OriginalID,
		&e.UploadedAt,
		&e.ReferenceCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file entry: %w", err)
	}
	return e, nil
}

// Create inserts a new file entry
func (r *FileEntryRepository) Create(ctx context.Context, e *models.FileEntry) error {
	query := `
		INSERT INTO file_entry (id, owner_id, name, media_type, size, content_hash, is_reference, original_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		e.ID,
		e.OwnerID,
		e.Name,
		e.MediaType,
		e.Size,
		e.ContentHash,
		e.IsReference,
		e.OriginalID,
		e.UploadedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create file entry: %w", err)
	}

	return nil
}

// GetOwned retrieves an entry by id, scoped to the owner. Entries owned by
// other principals are indistinguishable from absent ones.
func (r *FileEntryRepository) GetOwned(ctx context.Context, ownerID string, id uuid.UUID) (*models.FileEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM file_entry f WHERE f.id = $1 AND f.owner_id = $2`

	return scanEntry(r.db.Querier(ctx).QueryRow(ctx, query, id, ownerID))
}

// FindOriginalByHash returns the current non-reference entry for a
// fingerprint, or ErrNoRows when no physical copy exists.
func (r *FileEntryRepository) FindOriginalByHash(ctx context.Context, hash string) (*models.FileEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM file_entry f WHERE f.content_hash = $1 AND NOT f.is_reference`

	return scanEntry(r.db.Querier(ctx).QueryRow(ctx, query, hash))
}

// LockFingerprint serializes all mutators of one fingerprint. The advisory
// lock is transaction-scoped, so it releases on commit or rollback, and it
// keys on the hash alone, so contention never spreads past byte-identical
// content. Must be called inside db.WithTx.
func (r *FileEntryRepository) LockFingerprint(ctx context.Context, hash string) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, hash); err != nil {
		return fmt.Errorf("failed to lock fingerprint: %w", err)
	}
	return nil
}

// SelectSiblingForPromotion picks the promotion candidate among the
// references of the given original: the earliest-uploaded one, locked
// FOR UPDATE so two concurrent deletions cannot promote different rows.
// Returns ErrNoRows when the original has no references.
func (r *FileEntryRepository) SelectSiblingForPromotion(ctx context.Context, originalID uuid.UUID) (*models.FileEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM file_entry f
		WHERE f.original_id = $1
		ORDER BY f.uploaded_at ASC, f.id ASC
		LIMIT 1
		FOR UPDATE
	`

	return scanEntry(r.db.Querier(ctx).QueryRow(ctx, query, originalID))
}

// Promote converts a reference entry into the original for its fingerprint
func (r *FileEntryRepository) Promote(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE file_entry SET is_reference = FALSE, original_id = NULL WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to promote file entry: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("promote affected %d rows", tag.RowsAffected())
	}
	return nil
}

// RepointReferences moves every reference of oldOriginal to newOriginal so
// no row is left pointing at a doomed id.
func (r *FileEntryRepository) RepointReferences(ctx context.Context, oldOriginal, newOriginal uuid.UUID) error {
	query := `UPDATE file_entry SET original_id = $2 WHERE original_id = $1`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, oldOriginal, newOriginal); err != nil {
		return fmt.Errorf("failed to repoint references: %w", err)
	}
	return nil
}

// Delete removes an entry by id
func (r *FileEntryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM file_entry WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete file entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// CountByHash counts all entries sharing a fingerprint, any owner
func (r *FileEntryRepository) CountByHash(ctx context.Context, hash string) (int64, error) {
	query := `SELECT COUNT(*) FROM file_entry WHERE content_hash = $1`

	var count int64
	if err := r.db.Querier(ctx).QueryRow(ctx, query, hash).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries by hash: %w", err)
	}
	return count, nil
}

// OwnerHasHash reports whether the owner already holds any entry with the
// fingerprint (original or reference)
func (r *FileEntryRepository) OwnerHasHash(ctx context.Context, ownerID, hash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM file_entry WHERE owner_id = $1 AND content_hash = $2)`

	var exists bool
	if err := r.db.Querier(ctx).QueryRow(ctx, query, ownerID, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check owner hash: %w", err)
	}
	return exists, nil
}

// OwnerUsage returns the owner's deduped byte total (one representative size
// per distinct fingerprint) and the raw total over every upload.
func (r *FileEntryRepository) OwnerUsage(ctx context.Context, ownerID string) (deduped int64, raw int64, err error) {
	query := `
		SELECT
			COALESCE((SELECT SUM(u.size) FROM (
				SELECT DISTINCT ON (content_hash) size
				FROM file_entry
				WHERE owner_id = $1
				ORDER BY content_hash, uploaded_at ASC
			) u), 0),
			COALESCE(SUM(size), 0)
		FROM file_entry
		WHERE owner_id = $1
	`

	if err := r.db.Querier(ctx).QueryRow(ctx, query, ownerID).Scan(&deduped, &raw); err != nil {
		return 0, 0, fmt.Errorf("failed to compute owner usage: %w", err)
	}
	return deduped, raw, nil
}

// List returns the owner's entries, newest first, narrowed by the filter
func (r *FileEntryRepository) List(ctx context.Context, ownerID string, filter models.ListFilter) ([]*models.FileEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + entryColumns + ` FROM file_entry f WHERE f.owner_id = $1`)

	args := []any{ownerID}

	addArg := func(clause string, value any) {
		args = append(args, value)
		sb.WriteString(fmt.Sprintf(clause, len(args)))
	}

	if filter.Search != "" {
		addArg(` AND f.name ILIKE $%d`, "%"+escapeLike(filter.Search)+"%")
	}
	if filter.MediaType != "" {
		addArg(` AND f.media_type = $%d`, filter.MediaType)
	}
	if filter.MinSize != nil {
		addArg(` AND f.size >= $%d`, *filter.MinSize)
	}
	if filter.MaxSize != nil {
		addArg(` AND f.size <= $%d`, *filter.MaxSize)
	}
	if filter.Since != nil {
		addArg(` AND f.uploaded_at >= $%d`, *filter.Since)
	}
	if filter.Until != nil {
		addArg(` AND f.uploaded_at <= $%d`, *filter.Until)
	}

	sb.WriteString(` ORDER BY f.uploaded_at DESC, f.id DESC`)

	rows, err := r.db.Querier(ctx).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list file entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.FileEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file entries: %w", err)
	}

	return entries, nil
}

// DistinctMediaTypes lists the distinct media types among the owner's entries
func (r *FileEntryRepository) DistinctMediaTypes(ctx context.Context, ownerID string) ([]string, error) {
	query := `SELECT DISTINCT media_type FROM file_entry WHERE owner_id = $1 ORDER BY media_type`

	rows, err := r.db.Querier(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan media type: %w", err)
		}
		types = append(types, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media types: %w", err)
	}

	return types, nil
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search text
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
