package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// RefreshLog implements domain.RefreshLog using PostgreSQL.
type RefreshLog struct {
	pool *pgxpool.Pool
}

// NewRefreshLog creates a RefreshLog backed by the given connection pool.
func NewRefreshLog(pool *pgxpool.Pool) *RefreshLog {
	return &RefreshLog{pool: pool}
}

// Append records one marketplace refresh.
func (s *RefreshLog) Append(ctx context.Context, ev domain.RefreshEvent) error {
	const query = `
		INSERT INTO refresh_log (resource, model_id, item_count, fetched_at_ms)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, ev.Resource, ev.ModelID, ev.Count, ev.FetchedAtMs)
	if err != nil {
		return fmt.Errorf("postgres: append refresh %s: %w", ev.Resource, err)
	}
	return nil
}

// recentRefreshesSQL walks the primary key backwards; refresh_log has no
// other index.
const recentRefreshesSQL = `SELECT resource, model_id, item_count, fetched_at_ms FROM refresh_log ORDER BY id DESC`

// Recent returns up to limit refreshes, newest first.
func (s *RefreshLog) Recent(ctx context.Context, limit int) ([]domain.RefreshEvent, error) {
	query := recentRefreshesSQL
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list refreshes: %w", err)
	}
	defer rows.Close()

	var events []domain.RefreshEvent
	for rows.Next() {
		var ev domain.RefreshEvent
		if err := rows.Scan(&ev.Resource, &ev.ModelID, &ev.Count, &ev.FetchedAtMs); err != nil {
			return nil, fmt.Errorf("postgres: scan refresh: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list refreshes rows: %w", err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.RefreshLog = (*RefreshLog)(nil)
