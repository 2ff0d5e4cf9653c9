package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"datecreated-fixer/internal/logging"
	"datecreated-fixer/internal/metrics"
)

// Default timeout for single-statement operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("catalog: item not found")

// Catalog is the SQLite-backed store of media items. Changes made through
// AddItem, UpsertBatch and UpdateItem are announced to subscribers after
// they are committed.
type Catalog struct {
	db     *sql.DB
	dbPath string
	// mu serializes writers; SQLite allows a single writer at a time.
	mu     sync.RWMutex
	events *hub
	now    func() time.Time
}

// New opens (or creates) the catalog database at dbPath.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog path: %s", dbPath)

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
		events: newHub(),
		now:    time.Now,
	}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		parent_id TEXT NOT NULL DEFAULT '',
		date_created INTEGER NOT NULL,
		last_update_kind INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		seen_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_path ON items(path) WHERE path != '';
	CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
	CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
	CREATE INDEX IF NOT EXISTS idx_items_date_created ON items(date_created);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = c.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return c.runMigrations(ctx)
}

// runMigrations applies schema changes to catalogs created by older versions.
func (c *Catalog) runMigrations(ctx context.Context) error {
	// Migration 1: last_update_kind column
	var columnExists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('items')
		WHERE name='last_update_kind'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for last_update_kind column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating catalog: adding last_update_kind column to items table")
		if _, err := c.db.ExecContext(ctx, `
			ALTER TABLE items ADD COLUMN last_update_kind INTEGER NOT NULL DEFAULT 0
		`); err != nil {
			return fmt.Errorf("failed to add last_update_kind column: %w", err)
		}
		logging.Info("Migration complete: last_update_kind column added")
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('schema_version', '1')
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`)
	return err
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Subscribe registers handler for ItemAdded and ItemUpdated notifications.
// The returned function unsubscribes; calling it more than once is harmless.
func (c *Catalog) Subscribe(handler Handler) (unsubscribe func()) {
	return c.events.subscribe(handler)
}

// Subscribers returns the number of registered handlers.
func (c *Catalog) Subscribers() int {
	return c.events.count()
}

// AddItem inserts a new item and emits ItemAdded. A nil ID is assigned.
func (c *Catalog) AddItem(ctx context.Context, item *Item) (err error) {
	start := time.Now()
	defer func() { recordQuery("add_item", start, err) }()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := c.now()

	c.mu.Lock()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO items (id, name, kind, path, parent_id, date_created, updated_at, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID.String(), item.Name, string(item.Kind), item.Path, idString(item.ParentID),
		toMillis(item.DateCreated), now.UnixMilli(), now.UnixMilli(),
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}

	item.UpdatedAt = fromMillis(now.UnixMilli())
	c.events.emit(Event{Type: ItemAdded, Item: item, UpdateKind: UpdateNone})
	return nil
}

// UpsertBatch records items discovered on disk in a single transaction.
// File-backed items are matched by path, others by ID. Existing items keep
// their ID and DateCreated; only name, kind and parent are refreshed. After
// commit, ItemAdded is emitted for new items and ItemUpdated for items whose
// fields changed. Every item is marked as seen for DeleteMissing.
func (c *Catalog) UpsertBatch(ctx context.Context, items []*Item) (added, updated int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	start := time.Now()
	defer func() { recordQuery("upsert_batch", start, err) }()

	var pending []Event

	c.mu.Lock()
	err = func() error {
		tx, err := c.beginBatch(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin batch transaction: %w", err)
		}
		txStart := time.Now()

		for _, item := range items {
			evt, err := c.upsertOne(ctx, tx, item)
			if err != nil {
				return c.endBatch(tx, txStart, fmt.Errorf("upsert %s: %w", item.Path, err))
			}
			if evt != nil {
				pending = append(pending, *evt)
			}
		}

		return c.endBatch(tx, txStart, nil)
	}()
	c.mu.Unlock()

	if err != nil {
		return 0, 0, err
	}

	for _, evt := range pending {
		if evt.Type == ItemAdded {
			added++
		} else {
			updated++
		}
		c.events.emit(evt)
	}
	return added, updated, nil
}

// upsertOne returns the event to emit once the transaction commits, if any.
func (c *Catalog) upsertOne(ctx context.Context, tx *sql.Tx, item *Item) (*Event, error) {
	now := c.now().UnixMilli()

	var row *sql.Row
	if item.Path != "" {
		row = tx.QueryRowContext(ctx, selectItem+` WHERE path = ?`, item.Path)
	} else {
		row = tx.QueryRowContext(ctx, selectItem+` WHERE id = ?`, item.ID.String())
	}
	existing, err := scanItem(row)

	switch {
	case errors.Is(err, ErrNotFound):
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (id, name, kind, path, parent_id, date_created, updated_at, seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID.String(), item.Name, string(item.Kind), item.Path, idString(item.ParentID),
			toMillis(item.DateCreated), now, now,
		)
		if err != nil {
			return nil, err
		}
		item.UpdatedAt = fromMillis(now)
		return &Event{Type: ItemAdded, Item: item.Clone(), UpdateKind: UpdateMetadataImport}, nil

	case err != nil:
		return nil, err
	}

	item.ID = existing.ID
	item.DateCreated = existing.DateCreated

	if existing.Name == item.Name && existing.Kind == item.Kind && existing.ParentID == item.ParentID {
		item.UpdatedAt = existing.UpdatedAt
		_, err = tx.ExecContext(ctx, `UPDATE items SET seen_at = ? WHERE id = ?`, now, item.ID.String())
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE items SET name = ?, kind = ?, parent_id = ?, last_update_kind = ?, updated_at = ?, seen_at = ?
		WHERE id = ?`,
		item.Name, string(item.Kind), idString(item.ParentID), int(UpdateMetadataImport), now, now, item.ID.String(),
	)
	if err != nil {
		return nil, err
	}
	item.UpdatedAt = fromMillis(now)
	return &Event{Type: ItemUpdated, Item: item.Clone(), UpdateKind: UpdateMetadataImport}, nil
}

// GetItem retrieves a single item by ID.
func (c *Catalog) GetItem(ctx context.Context, id uuid.UUID) (item *Item, err error) {
	start := time.Now()
	defer func() { recordQuery("get_item", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanItem(c.db.QueryRowContext(ctx, selectItem+` WHERE id = ?`, id.String()))
}

// GetItemByPath retrieves a file-backed item by its path.
func (c *Catalog) GetItemByPath(ctx context.Context, path string) (item *Item, err error) {
	start := time.Now()
	defer func() { recordQuery("get_item_by_path", start, err) }()

	if path == "" {
		return nil, ErrNotFound
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanItem(c.db.QueryRowContext(ctx, selectItem+` WHERE path = ?`, path))
}

// GetParent returns the item's parent, or nil for items at the library root.
func (c *Catalog) GetParent(ctx context.Context, item *Item) (*Item, error) {
	if !item.HasParent() {
		return nil, nil
	}
	parent, err := c.GetItem(ctx, item.ParentID)
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %w", item.ID, err)
	}
	return parent, nil
}

// QueryItems returns the items matching q, ordered by path then name.
func (c *Catalog) QueryItems(ctx context.Context, q Query) (items []*Item, err error) {
	start := time.Now()
	defer func() { recordQuery("query_items", start, err) }()

	var (
		sb   strings.Builder
		args []interface{}
	)

	switch {
	case q.Recursive && q.ParentID == uuid.Nil:
		sb.WriteString(selectItem + ` WHERE 1 = 1`)
	case q.Recursive:
		sb.WriteString(`
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM items WHERE parent_id = ?
			UNION
			SELECT i.id FROM items i JOIN tree t ON i.parent_id = t.id
		)
		` + selectItem + ` WHERE id IN (SELECT id FROM tree)`)
		args = append(args, q.ParentID.String())
	default:
		sb.WriteString(selectItem + ` WHERE parent_id = ?`)
		args = append(args, idString(q.ParentID))
	}

	if len(q.Kinds) > 0 {
		sb.WriteString(` AND kind IN (?` + strings.Repeat(", ?", len(q.Kinds)-1) + `)`)
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}
	sb.WriteString(` ORDER BY path, name`)

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close item rows: %v", closeErr)
		}
	}()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem persists item and emits ItemUpdated. When parent is non-nil the
// item is saved under that parent. Returns ErrNotFound if the item is gone.
func (c *Catalog) UpdateItem(ctx context.Context, item, parent *Item, kind UpdateKind) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_item", start, err) }()

	if parent != nil {
		item.ParentID = parent.ID
	}
	now := c.now().UnixMilli()

	c.mu.Lock()
	result, err := c.db.ExecContext(ctx, `
		UPDATE items SET name = ?, kind = ?, path = ?, parent_id = ?, date_created = ?,
			last_update_kind = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, string(item.Kind), item.Path, idString(item.ParentID), toMillis(item.DateCreated),
		int(kind), now, item.ID.String(),
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
	}

	item.UpdatedAt = fromMillis(now)
	c.events.emit(Event{Type: ItemUpdated, Item: item, UpdateKind: kind})
	return nil
}

// DeleteMissing removes file-backed items not seen since cutoff.
func (c *Catalog) DeleteMissing(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_missing", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx,
		`DELETE FROM items WHERE path != '' AND seen_at < ?`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Stats counts items per kind and items created on or before badBefore.
func (c *Catalog) Stats(ctx context.Context, badBefore time.Time) (stats Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats.ItemsByKind = make(map[Kind]int)

	rows, err := c.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM items GROUP BY kind`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			_ = rows.Close()
			return stats, err
		}
		stats.ItemsByKind[Kind(kind)] = count
		stats.Total += count
	}
	if err := rows.Close(); err != nil {
		return stats, err
	}

	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE date_created <= ?`,
		toMillis(badBefore),
	).Scan(&stats.BadDates)
	return stats, err
}

// UpdateMetrics refreshes connection pool metrics.
func (c *Catalog) UpdateMetrics() {
	metrics.CatalogConnectionsOpen.Set(float64(c.db.Stats().OpenConnections))
}

// beginBatch starts a transaction. Callers hold c.mu.
func (c *Catalog) beginBatch(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// endBatch commits, or rolls back when err is non-nil.
func (c *Catalog) endBatch(tx *sql.Tx, txStart time.Time, err error) error {
	duration := time.Since(txStart).Seconds()

	if err != nil {
		metrics.CatalogTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.CatalogTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

const selectItem = `SELECT id, name, kind, path, parent_id, date_created, updated_at FROM items`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                  Item
		id, parent, kind      string
		dateCreated, modified int64
	)

	err := row.Scan(&id, &item.Name, &kind, &item.Path, &parent, &dateCreated, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if item.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid item id %q: %w", id, err)
	}
	if parent != "" {
		if item.ParentID, err = uuid.Parse(parent); err != nil {
			return nil, fmt.Errorf("invalid parent id %q: %w", parent, err)
		}
	}
	item.Kind = Kind(kind)
	item.DateCreated = fromMillis(dateCreated)
	item.UpdatedAt = fromMillis(modified)
	return &item, nil
}

// idString stores the nil UUID as an empty string.
func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// recordQuery records catalog query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CatalogQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.CatalogQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
