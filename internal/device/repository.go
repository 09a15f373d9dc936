package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the persistence interface for presence entries.
// The aggregator treats it as a warm-start cache: writes are best effort
// and reads only seed an empty map.
type Repository interface {
	// Save inserts or updates one presence entry.
	Save(ctx context.Context, c Connection) error

	// Delete removes one presence entry by device ID. Deleting a missing
	// entry is not an error.
	Delete(ctx context.Context, id string) error

	// List retrieves all persisted presence entries.
	List(ctx context.Context) ([]Connection, error)
}

// SQLiteRepository implements Repository on the device_presence table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed presence repository.
// The db parameter should be an open connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or updates one presence entry.
func (r *SQLiteRepository) Save(ctx context.Context, c Connection) error {
	query := `
		INSERT INTO device_presence (id, display_name, connected, last_seen, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			connected = excluded.connected,
			last_seen = excluded.last_seen,
			source = excluded.source,
			updated_at = excluded.updated_at`

	connected := 0
	if c.Connected {
		connected = 1
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.DisplayName, connected,
		c.LastSeen.UTC().Format(time.RFC3339), string(c.Source), now)
	if err != nil {
		return fmt.Errorf("saving presence entry: %w", err)
	}
	return nil
}

// Delete removes one presence entry by device ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_presence WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting presence entry: %w", err)
	}
	return nil
}

// List retrieves all persisted presence entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Connection, error) {
	query := `
		SELECT id, display_name, connected, last_seen, source
		FROM device_presence
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying presence entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var out []Connection
	for rows.Next() {
		var (
			c         Connection
			connected int
			lastSeen  string
			source    string
		)
		if err := rows.Scan(&c.ID, &c.DisplayName, &connected, &lastSeen, &source); err != nil {
			return nil, fmt.Errorf("scanning presence entry: %w", err)
		}
		c.Connected = connected != 0
		c.Source = Source(source)
		if t, err := time.Parse(time.RFC3339, lastSeen); err == nil {
			c.LastSeen = t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presence entries: %w", err)
	}
	return out, nil
}
