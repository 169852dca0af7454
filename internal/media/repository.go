package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/travelsidecar/service/internal/domain/model"
)

// Repository persists file records. FindByID returns ErrNotFound for unknown ids;
// soft-deleted records are returned with IsDeleted set.
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)
	Insert(ctx context.Context, rec *model.FileRecord) error
	// Save writes the mutable fields: health, visibility and soft-delete markers.
	Save(ctx context.Context, rec *model.FileRecord) error
	// FindLatestCoverFor returns the newest live trip cover of parentID other
	// than excludingID, or ErrNotFound.
	FindLatestCoverFor(ctx context.Context, parentID, excludingID string) (*model.FileRecord, error)
	// InsertReplacingCover inserts rec and soft-deletes the previous live cover
	// of the same trip in one transaction. It returns the replaced record, if any.
	InsertReplacingCover(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)
}

const fileColumns = `id, owner_id, parent_id, file_name, content_type, size_bytes, storage_path,
	visibility, kind, category, storage_health, is_encrypted, encryption_key_id,
	has_derivatives, is_deleted, deleted_at, created_at, last_modified_at`

// PostgresRepository implements Repository on the files table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository with the given connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FindByID fetches a record by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	rec, err := scanFile(r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return rec, nil
}

// Insert stores a new record.
func (r *PostgresRepository) Insert(ctx context.Context, rec *model.FileRecord) error {
	return insertFile(ctx, r.db, rec)
}

// Save updates the mutable columns of rec.
func (r *PostgresRepository) Save(ctx context.Context, rec *model.FileRecord) error {
	return saveFile(ctx, r.db, rec)
}

// FindLatestCoverFor returns the newest live cover of a trip, skipping excludingID.
func (r *PostgresRepository) FindLatestCoverFor(ctx context.Context, parentID, excludingID string) (*model.FileRecord, error) {
	return latestCover(ctx, r.db, parentID, excludingID, false)
}

// InsertReplacingCover soft-deletes the current cover of rec's trip and inserts rec.
func (r *PostgresRepository) InsertReplacingCover(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	if rec.ParentID == nil {
		return nil, fmt.Errorf("%w: cover without parent trip", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	prev, err := latestCover(ctx, tx, *rec.ParentID, rec.ID, true)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if prev != nil {
		supersede(prev, rec.CreatedAt)
		if err := saveFile(ctx, tx, prev); err != nil {
			return nil, fmt.Errorf("soft-delete previous cover: %w", err)
		}
	}

	if err := insertFile(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cover replacement: %w", err)
	}
	return prev, nil
}

// supersede marks a replaced cover as deleted and no longer servable.
func supersede(prev *model.FileRecord, at time.Time) {
	prev.IsDeleted = true
	prev.DeletedAt = &at
	prev.Visibility = model.VisibilityNone
	prev.LastModifiedAt = at
}

func latestCover(ctx context.Context, q querier, parentID, excludingID string, lock bool) (*model.FileRecord, error) {
	sql := `SELECT ` + fileColumns + ` FROM files
		 WHERE parent_id = $1 AND kind = $2 AND id <> $3 AND NOT is_deleted
		 ORDER BY created_at DESC
		 LIMIT 1`
	if lock {
		sql += ` FOR UPDATE`
	}

	rec, err := scanFile(q.QueryRow(ctx, sql, parentID, model.KindTripCover, excludingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest cover: %w", err)
	}
	return rec, nil
}

func insertFile(ctx context.Context, q querier, rec *model.FileRecord) error {
	_, err := q.Exec(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.OwnerID, rec.ParentID, rec.FileName, rec.ContentType, rec.SizeBytes, rec.StoragePath,
		rec.Visibility, rec.Kind, rec.Category, rec.StorageHealth, rec.IsEncrypted, rec.EncryptionKeyID,
		rec.HasDerivatives, rec.IsDeleted, rec.DeletedAt, rec.CreatedAt, rec.LastModifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func saveFile(ctx context.Context, q querier, rec *model.FileRecord) error {
	tag, err := q.Exec(ctx,
		`UPDATE files
		 SET storage_health = $2, visibility = $3, is_deleted = $4, deleted_at = $5, last_modified_at = $6
		 WHERE id = $1`,
		rec.ID, rec.StorageHealth, rec.Visibility, rec.IsDeleted, rec.DeletedAt, rec.LastModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFile(row pgx.Row) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.ParentID, &rec.FileName, &rec.ContentType, &rec.SizeBytes, &rec.StoragePath,
		&rec.Visibility, &rec.Kind, &rec.Category, &rec.StorageHealth, &rec.IsEncrypted, &rec.EncryptionKeyID,
		&rec.HasDerivatives, &rec.IsDeleted, &rec.DeletedAt, &rec.CreatedAt, &rec.LastModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
