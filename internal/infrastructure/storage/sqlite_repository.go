package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"statswatch/internal/domain"
	"statswatch/internal/ports"
)

// SQLiteRepository persists tracked items, snapshots and change records in
// an embedded SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Repository = (*SQLiteRepository)(nil)

// Open creates the database file (and parent directories) if needed, applies
// the schema and returns a ready repository.
func Open(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single-writer discipline: the orchestrator is the only mutator, and a
	// single connection sidesteps SQLITE_BUSY between reads and writes.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func applySchema(db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// UpsertItem returns the id for (name, url), inserting the item on first sight.
func (r *SQLiteRepository) UpsertItem(ctx context.Context, name, url string) (int64, error) {
	query, args, err := sq.Insert("items").
		Columns("name", "url", "created_at").
		Values(name, url, r.now().Unix()).
		Suffix("ON CONFLICT(name, url) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert item: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}

	query, args, err = sq.Select("id").From("items").
		Where(sq.Eq{"name": name, "url": url}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select item: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("select item id: %w", err)
	}
	return id, nil
}

// AllItems lists every tracked item ordered by name.
func (r *SQLiteRepository) AllItems(ctx context.Context) ([]domain.TrackedItem, error) {
	query, args, err := sq.Select("id", "name", "url", "created_at").
		From("items").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.TrackedItem
	for rows.Next() {
		var it domain.TrackedItem
		var createdAt int64
		if err := rows.Scan(&it.ID, &it.Name, &it.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.CreatedAt = time.Unix(createdAt, 0).UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

// LatestSnapshot returns the item's newest snapshot, or nil if the item has
// never been observed.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, itemID int64) (*domain.Snapshot, error) {
	query, args, err := sq.Select("id", "item_id", "users", "rating", "reviews", "last_updated", "captured_at").
		From("snapshots").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("captured_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select snapshot: %w", err)
	}

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest snapshot: %w", err)
	}
	return &snap, nil
}

// AppendSnapshot inserts a new observation row; existing rows are never updated.
func (r *SQLiteRepository) AppendSnapshot(ctx context.Context, itemID int64, m domain.Metrics, lastUpdated string) (domain.Snapshot, error) {
	capturedAt := r.now()

	query, args, err := sq.Insert("snapshots").
		Columns("item_id", "users", "rating", "reviews", "last_updated", "captured_at").
		Values(itemID, m.Users, m.Rating, m.Reviews, nullable(lastUpdated), capturedAt.Unix()).
		ToSql()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("build insert snapshot: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot id: %w", err)
	}

	return domain.Snapshot{
		ID:          id,
		ItemID:      itemID,
		Metrics:     m,
		LastUpdated: lastUpdated,
		CapturedAt:  capturedAt.Truncate(time.Second),
	}, nil
}

// AppendChange records one metric delta for an item.
func (r *SQLiteRepository) AppendChange(ctx context.Context, itemID int64, metric, oldValue, newValue string) (domain.Change, error) {
	detectedAt := r.now()

	query, args, err := sq.Insert("changes").
		Columns("item_id", "metric", "old_value", "new_value", "detected_at").
		Values(itemID, metric, oldValue, newValue, detectedAt.Unix()).
		ToSql()
	if err != nil {
		return domain.Change{}, fmt.Errorf("build insert change: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Change{}, fmt.Errorf("insert change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Change{}, fmt.Errorf("change id: %w", err)
	}

	return domain.Change{
		ID:         id,
		ItemID:     itemID,
		Metric:     metric,
		OldValue:   oldValue,
		NewValue:   newValue,
		DetectedAt: detectedAt.Truncate(time.Second),
	}, nil
}

// UnnotifiedChanges lists changes not yet notified, joined with item
// identity, ordered by item then detection time.
func (r *SQLiteRepository) UnnotifiedChanges(ctx context.Context) ([]domain.ChangeRow, error) {
	query, args, err := sq.Select(
		"c.id", "c.item_id", "c.metric", "c.old_value", "c.new_value",
		"c.detected_at", "c.notified", "c.notified_at", "i.name", "i.url").
		From("changes c").
		Join("items i ON c.item_id = i.id").
		Where(sq.Eq{"c.notified": 0}).
		OrderBy("c.item_id", "c.detected_at", "c.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select unnotified: %w", err)
	}
	return r.queryChangeRows(ctx, query, args)
}

// MarkNotified flags the listed change ids as notified exactly once; the
// notified flag never reverts. No-op on empty input.
func (r *SQLiteRepository) MarkNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sq.Update("changes").
		Set("notified", 1).
		Set("notified_at", r.now().Unix()).
		Where(sq.Eq{"id": ids, "notified": 0}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark notified: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ListItems returns every tracked item paired with its latest snapshot.
func (r *SQLiteRepository) ListItems(ctx context.Context) ([]domain.ItemStatus, error) {
	items, err := r.AllItems(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]domain.ItemStatus, 0, len(items))
	for _, it := range items {
		latest, err := r.LatestSnapshot(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, domain.ItemStatus{Item: it, Latest: latest})
	}
	return statuses, nil
}

// History returns the item's snapshots within the last sinceHours hours,
// oldest first.
func (r *SQLiteRepository) History(ctx context.Context, itemID int64, sinceHours int) ([]domain.Snapshot, error) {
	cutoff := r.now().Add(-time.Duration(sinceHours) * time.Hour).Unix()

	query, args, err := sq.Select("id", "item_id", "users", "rating", "reviews", "last_updated", "captured_at").
		From("snapshots").
		Where(sq.Eq{"item_id": itemID}).
		Where(sq.GtOrEq{"captured_at": cutoff}).
		OrderBy("captured_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return snaps, nil
}

// RecentChanges returns the newest change rows joined with item identity.
func (r *SQLiteRepository) RecentChanges(ctx context.Context, limit int) ([]domain.ChangeRow, error) {
	query, args, err := sq.Select(
		"c.id", "c.item_id", "c.metric", "c.old_value", "c.new_value",
		"c.detected_at", "c.notified", "c.notified_at", "i.name", "i.url").
		From("changes c").
		Join("items i ON c.item_id = i.id").
		OrderBy("c.detected_at DESC", "c.id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select recent: %w", err)
	}
	return r.queryChangeRows(ctx, query, args)
}

// AddItem seeds a tracked item and returns it.
func (r *SQLiteRepository) AddItem(ctx context.Context, name, url string) (domain.TrackedItem, error) {
	id, err := r.UpsertItem(ctx, name, url)
	if err != nil {
		return domain.TrackedItem{}, err
	}
	return domain.TrackedItem{ID: id, Name: name, URL: url}, nil
}

// RemoveItem deletes a tracked item; snapshots and changes cascade.
func (r *SQLiteRepository) RemoveItem(ctx context.Context, itemID int64) error {
	query, args, err := sq.Delete("items").Where(sq.Eq{"id": itemID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete item: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryChangeRows(ctx context.Context, query string, args []interface{}) ([]domain.ChangeRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var result []domain.ChangeRow
	for rows.Next() {
		var row domain.ChangeRow
		var oldValue, newValue sql.NullString
		var detectedAt int64
		var notified int
		var notifiedAt sql.NullInt64
		if err := rows.Scan(&row.ID, &row.ItemID, &row.Metric, &oldValue, &newValue,
			&detectedAt, &notified, &notifiedAt, &row.ItemName, &row.ItemURL); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		row.OldValue = oldValue.String
		row.NewValue = newValue.String
		row.DetectedAt = time.Unix(detectedAt, 0).UTC()
		row.Notified = notified != 0
		if notifiedAt.Valid {
			row.NotifiedAt = time.Unix(notifiedAt.Int64, 0).UTC()
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var lastUpdated sql.NullString
	var capturedAt int64
	err := row.Scan(&snap.ID, &snap.ItemID, &snap.Metrics.Users, &snap.Metrics.Rating,
		&snap.Metrics.Reviews, &lastUpdated, &capturedAt)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.LastUpdated = lastUpdated.String
	snap.CapturedAt = time.Unix(capturedAt, 0).UTC()
	return snap, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
