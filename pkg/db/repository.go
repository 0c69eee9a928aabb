package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wkc-labs/wkc-server/pkg/docstore"
)

const repoLogPrefix = "db:repository"

// DocumentRepository implements docstore.Store on a single JSONB table.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

var _ docstore.Store = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Create inserts a document under a new uuid.
func (r *DocumentRepository) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%s - encode fields: %w", repoLogPrefix, err)
	}
	id := uuid.NewString()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(data))
	if err != nil {
		return "", fmt.Errorf("%s - insert into %s: %w", repoLogPrefix, collection, err)
	}
	return id, nil
}

// Get loads a document by id.
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - get %s/%s: %w", repoLogPrefix, collection, id, err)
	}
	return decodeDocument(id, raw)
}

// Update merges partial into the stored fields with the jsonb || operator.
func (r *DocumentRepository) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	data, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%s - encode update: %w", repoLogPrefix, err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET fields = fields || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("%s - update %s/%s: %w", repoLogPrefix, collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("%s - delete %s/%s: %w", repoLogPrefix, collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// QueryByEquality returns documents whose field equals value, in insertion order.
func (r *DocumentRepository) QueryByEquality(ctx context.Context, collection, field string, value any, limit, offset int) ([]docstore.Document, error) {
	filter, err := equalityFilter(field, value)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb ORDER BY seq`
	args := []any{collection, filter}
	argIdx := 3
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
		argIdx++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - query %s: %w", repoLogPrefix, collection, err)
	}
	return scanDocuments(rows)
}

// CountByEquality counts documents whose field equals value.
func (r *DocumentRepository) CountByEquality(ctx context.Context, collection, field string, value any) (int, error) {
	filter, err := equalityFilter(field, value)
	if err != nil {
		return 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1 AND fields @> $2::jsonb`,
		collection, filter).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%s - count %s: %w", repoLogPrefix, collection, err)
	}
	return total, nil
}

// QueryOrderedByTime returns documents whose field equals value ordered by
// the timestamp stored under timeField.
func (r *DocumentRepository) QueryOrderedByTime(ctx context.Context, collection, field string, value any, timeField string, dir docstore.Direction) ([]docstore.Document, error) {
	filter, err := equalityFilter(field, value)
	if err != nil {
		return nil, err
	}
	order := "DESC"
	if dir == docstore.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(
		`SELECT id, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb
		 ORDER BY (fields->>$3)::timestamptz %s NULLS LAST, seq`, order)

	rows, err := r.pool.Query(ctx, query, collection, filter, timeField)
	if err != nil {
		return nil, fmt.Errorf("%s - ordered query %s: %w", repoLogPrefix, collection, err)
	}
	return scanDocuments(rows)
}

// Ping checks database connectivity.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *DocumentRepository) Close() {
	r.pool.Close()
}

func equalityFilter(field string, value any) (string, error) {
	data, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return "", fmt.Errorf("%s - encode filter on %s: %w", repoLogPrefix, field, err)
	}
	return string(data), nil
}

func scanDocuments(rows pgx.Rows) ([]docstore.Document, error) {
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%s - scan document: %w", repoLogPrefix, err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate documents: %w", repoLogPrefix, err)
	}
	return docs, nil
}

func decodeDocument(id string, raw []byte) (*docstore.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%s - decode document %s: %w", repoLogPrefix, id, err)
	}
	return &docstore.Document{ID: id, Fields: fields}, nil
}
