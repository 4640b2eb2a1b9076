package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"

	"storefront/kit/observability"
)

const (
	qDocumentsSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`
	qDocumentGet    = "SELECT body FROM documents WHERE collection = $1 AND id = $2"
	qDocumentPut    = "INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb) ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body"
	qDocumentPatch  = "UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2"
	qDocumentExists = "SELECT 1 FROM documents WHERE collection = $1 AND id = $2"
)

// PostgresClient keeps every collection in one JSONB table. Field names are
// validated before they are spliced into SQL so the per-field expression
// indexes created by Migrate can serve equality queries.
type PostgresClient struct {
	db      *sql.DB
	indexes map[string][]string
	logger  *observability.Logger
}

type PostgresOption func(*PostgresClient)

func WithPostgresIndex(collection string, fields ...string) PostgresOption {
	return func(c *PostgresClient) {
		c.indexes[collection] = append(c.indexes[collection], fields...)
	}
}

func WithPostgresLogger(logger *observability.Logger) PostgresOption {
	return func(c *PostgresClient) { c.logger = logger }
}

func NewPostgresClient(sqlDB *sql.DB, opts ...PostgresOption) *PostgresClient {
	c := &PostgresClient{db: sqlDB, indexes: make(map[string][]string)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenPostgres opens a pgx-backed pool, pings it and runs Migrate.
func OpenPostgres(ctx context.Context, url string, opts ...PostgresOption) (*PostgresClient, error) {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, errors.Join(ErrInvalid, fmt.Errorf("open postgres: %w", err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Join(ErrUnavailable, fmt.Errorf("ping postgres: %w", err))
	}
	c := NewPostgresClient(sqlDB, opts...)
	if err := c.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresClient) Close() error {
	return c.db.Close()
}

func indexStatement(collection, field string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS documents_%s_%s_idx ON documents ((body->'%s')) WHERE collection = '%s'",
		collection, field, field, collection,
	)
}

func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, qDocumentsSchema); err != nil {
		c.logError("Migrate", "", "", err)
		return errors.Join(ErrUnavailable, err)
	}
	for collection, fields := range c.indexes {
		if err := validateField(collection); err != nil {
			return err
		}
		for _, f := range fields {
			if err := validateField(f); err != nil {
				return err
			}
			if _, err := c.db.ExecContext(ctx, indexStatement(collection, f)); err != nil {
				c.logError("Migrate", collection, f, err)
				return errors.Join(ErrUnavailable, err)
			}
		}
	}
	return nil
}

func (c *PostgresClient) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	if err := c.db.QueryRowContext(ctx, qDocumentGet, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		c.logError("Get", collection, id, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	return decodeDocument(raw)
}

func (c *PostgresClient) Put(ctx context.Context, collection, id string, doc Document) error {
	body, err := encodeNormalized(doc)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, qDocumentPut, collection, id, body); err != nil {
		c.logError("Put", collection, id, err)
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (c *PostgresClient) Patch(ctx context.Context, collection, id string, partial Document) error {
	body, err := encodeNormalized(partial)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, qDocumentPatch, collection, id, body)
	if err != nil {
		c.logError("Patch", collection, id, err)
		return errors.Join(ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrInternal, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func patchIfStatement(field string) string {
	return fmt.Sprintf("UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2 AND body->'%s' = $4::jsonb", field)
}

func (c *PostgresClient) PatchIf(ctx context.Context, collection, id string, cond Condition, partial Document) error {
	if err := validateField(cond.Field); err != nil {
		return err
	}
	body, err := encodeNormalized(partial)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, patchIfStatement(cond.Field), collection, id, body, valueKey(cond.Value))
	if err != nil {
		c.logError("PatchIf", collection, id, err)
		return errors.Join(ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrInternal, err)
	}
	if n == 1 {
		return nil
	}

	var one int
	if err := c.db.QueryRowContext(ctx, qDocumentExists, collection, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		c.logError("PatchIf", collection, id, err)
		return errors.Join(ErrUnavailable, err)
	}
	return ErrConflict
}

func queryStatement(field string) string {
	return fmt.Sprintf("SELECT body FROM documents WHERE collection = $1 AND body->'%s' = $2::jsonb ORDER BY id", field)
}

func (c *PostgresClient) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := validateOp(op); err != nil {
		return nil, err
	}
	if err := validateField(field); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, queryStatement(field), collection, valueKey(value))
	if err != nil {
		c.logError("Query", collection, field, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Join(ErrInternal, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		c.logError("Query", collection, field, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	return out, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (c *PostgresClient) logError(method, collection, ref string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("db error", "layer", "client", "component", "db", "client", "postgres", "method", method, "collection", collection, "ref", ref, "error", err.Error())
}

func encodeNormalized(doc Document) (string, error) {
	n, err := normalize(doc)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", errors.Join(ErrInternal, err)
	}
	return string(b), nil
}
