package datasource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rhordoan/logpulse/pkg/models"
)

// ErrNotFound is returned by Get when no row matches the given id.
var ErrNotFound = errors.New("datasource: not found")

// ChangeKind distinguishes the events a Watch channel delivers.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// Change is one CRUD event, used by the producer manager to start/stop
// producer instances without a full rescan.
type Change struct {
	Kind ChangeKind
	Row  models.DataSource
}

// Repository is the narrow contract the producer manager and the thin CRUD
// API depend on. A Postgres implementation lives alongside it in this
// package; callers should depend on the interface, not *Postgres.
type Repository interface {
	List(ctx context.Context) ([]models.DataSource, error)
	Get(ctx context.Context, id string) (models.DataSource, error)
	Create(ctx context.Context, ds models.DataSource) (models.DataSource, error)
	Update(ctx context.Context, ds models.DataSource) (models.DataSource, error)
	Delete(ctx context.Context, id string) error

	// Watch delivers Create/Update/Delete events for as long as ctx is
	// live. Implementations may use polling; callers must not assume
	// push-exactness, only eventual delivery.
	Watch(ctx context.Context) <-chan Change
}

// Postgres is the Repository implementation backed by the data_sources
// table, grounded on the teacher's pkg/database client/migration plumbing.
type Postgres struct {
	db        *sql.DB
	pollEvery time.Duration
}

// NewPostgres wraps an existing connection. pollEvery controls how often
// Watch polls for changes; LISTEN/NOTIFY is not used here to keep the
// client dependency-light (plain database/sql).
func NewPostgres(db *sql.DB, pollEvery time.Duration) *Postgres {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	return &Postgres{db: db, pollEvery: pollEvery}
}

func (p *Postgres) List(ctx context.Context) ([]models.DataSource, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, name, config, enabled, created_at, updated_at
		FROM data_sources
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()

	var out []models.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, id string) (models.DataSource, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, type, name, config, enabled, created_at, updated_at
		FROM data_sources WHERE id = $1`, id)

	ds, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DataSource{}, ErrNotFound
	}
	if err != nil {
		return models.DataSource{}, fmt.Errorf("get data source %s: %w", id, err)
	}
	return ds, nil
}

func (p *Postgres) Create(ctx context.Context, ds models.DataSource) (models.DataSource, error) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(ds.Config)
	if err != nil {
		return models.DataSource{}, fmt.Errorf("marshal config: %w", err)
	}

	row := p.db.QueryRowContext(ctx, `
		INSERT INTO data_sources (id, type, name, config, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, type, name, config, enabled, created_at, updated_at`,
		ds.ID, ds.Type, ds.Name, cfg, ds.Enabled)

	return scanDataSource(row)
}

func (p *Postgres) Update(ctx context.Context, ds models.DataSource) (models.DataSource, error) {
	cfg, err := json.Marshal(ds.Config)
	if err != nil {
		return models.DataSource{}, fmt.Errorf("marshal config: %w", err)
	}

	row := p.db.QueryRowContext(ctx, `
		UPDATE data_sources
		SET type = $2, name = $3, config = $4, enabled = $5, updated_at = now()
		WHERE id = $1
		RETURNING id, type, name, config, enabled, created_at, updated_at`,
		ds.ID, ds.Type, ds.Name, cfg, ds.Enabled)

	result, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DataSource{}, ErrNotFound
	}
	return result, err
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete data source %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch polls the table on an interval and diffs against the previously
// observed set, emitting Create/Update events for new or changed rows and
// Delete events for rows that disappeared. The channel is closed when ctx
// is done.
func (p *Postgres) Watch(ctx context.Context) <-chan Change {
	out := make(chan Change, 16)

	go func() {
		defer close(out)
		seen := map[string]time.Time{} // id -> updated_at observed

		ticker := time.NewTicker(p.pollEvery)
		defer ticker.Stop()

		poll := func() {
			rows, err := p.List(ctx)
			if err != nil {
				return
			}
			current := map[string]bool{}
			for _, ds := range rows {
				current[ds.ID] = true
				if last, ok := seen[ds.ID]; !ok || ds.UpdatedAt.After(last) {
					seen[ds.ID] = ds.UpdatedAt
					select {
					case out <- Change{Kind: ChangeUpsert, Row: ds}:
					case <-ctx.Done():
						return
					}
				}
			}
			for id := range seen {
				if !current[id] {
					delete(seen, id)
					select {
					case out <- Change{Kind: ChangeDelete, Row: models.DataSource{ID: id}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		poll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner) (models.DataSource, error) {
	var ds models.DataSource
	var cfg []byte
	if err := row.Scan(&ds.ID, &ds.Type, &ds.Name, &cfg, &ds.Enabled, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return models.DataSource{}, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &ds.Config); err != nil {
			return models.DataSource{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	return ds, nil
}
