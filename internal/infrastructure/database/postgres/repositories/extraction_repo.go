// Package repositories provides the PostgreSQL persistence layer.  The
// extraction repository is the durable side of the document cache: one row
// per distinct content hash, with the full extraction result as JSONB.
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// ExtractionRepository persists extraction records and results.  It backs the
// pipeline's content-hash cache, so Get for an unknown key must return
// ErrCodeExtractionNotFound rather than a bare sql error.
type ExtractionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewExtractionRepository constructs an ExtractionRepository.
func NewExtractionRepository(pool *pgxpool.Pool, log logging.Logger) *ExtractionRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ExtractionRepository{pool: pool, logger: log.Named("extraction_repo")}
}

const extractionColumns = `content_key, filename, file_type, status,
	entity_count, link_count, model_used, tokens_used, error, result,
	created_at, updated_at`

// Get loads one record and its result by content hash.  The result is nil for
// records persisted before completion.
func (r *ExtractionRepository) Get(ctx context.Context, key string) (*extraction.Record, *extraction.Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE content_key = $1`, key)

	rec, res, err := scanExtraction(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil, errors.New(errors.ErrCodeExtractionNotFound, "extraction not found").
				WithDetail("content_key=" + key)
		}
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load extraction")
	}
	return rec, res, nil
}

// Put upserts the record and result under its content hash.  Re-processing
// the same document bytes overwrites the previous row in place.
func (r *ExtractionRepository) Put(ctx context.Context, rec *extraction.Record, res *extraction.Result) error {
	var resultJSON []byte
	if res != nil {
		data, err := json.Marshal(res)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode extraction result")
		}
		resultJSON = data
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO extractions (`+extractionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_key) DO UPDATE SET
			filename     = EXCLUDED.filename,
			file_type    = EXCLUDED.file_type,
			status       = EXCLUDED.status,
			entity_count = EXCLUDED.entity_count,
			link_count   = EXCLUDED.link_count,
			model_used   = EXCLUDED.model_used,
			tokens_used  = EXCLUDED.tokens_used,
			error        = EXCLUDED.error,
			result       = COALESCE(EXCLUDED.result, extractions.result),
			updated_at   = EXCLUDED.updated_at`,
		rec.ContentKey, rec.Filename, rec.FileType, string(rec.Status),
		rec.EntityCount, rec.LinkCount, rec.ModelUsed, rec.TokensUsed,
		rec.Error, resultJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to persist extraction")
	}

	r.logger.Debug("extraction persisted",
		logging.String("content_key", rec.ContentKey),
		logging.String("status", string(rec.Status)))
	return nil
}

// ListRecent returns records ordered by most recent update.
func (r *ExtractionRepository) ListRecent(ctx context.Context, limit int) ([]*extraction.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+extractionColumns+` FROM extractions
		 ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list extractions")
	}
	defer rows.Close()

	var out []*extraction.Record
	for rows.Next() {
		rec, _, err := scanExtraction(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan extraction row")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate extractions")
	}
	return out, nil
}

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*extraction.Record, *extraction.Result, error) {
	var (
		rec        extraction.Record
		status     string
		resultJSON []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := row.Scan(&rec.ContentKey, &rec.Filename, &rec.FileType, &status,
		&rec.EntityCount, &rec.LinkCount, &rec.ModelUsed, &rec.TokensUsed,
		&rec.Error, &resultJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, nil, err
	}
	rec.Status = extraction.Status(status)
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt

	var res *extraction.Result
	if len(resultJSON) > 0 {
		res = &extraction.Result{}
		if err := json.Unmarshal(resultJSON, res); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode extraction result")
		}
	}
	return &rec, res, nil
}
