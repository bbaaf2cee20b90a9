package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the queries the timeline service needs.
type Repository interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `
SELECT al.occurred_at, COALESCE(u.email, al.actor_id), al.action, al.entity, al.entity_id, al.meta
FROM audit_logs al
LEFT JOIN users u ON u.id = al.actor_id
WHERE al.company_id = $1
  AND ($2::timestamptz IS NULL OR al.occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR al.occurred_at < $3 + interval '1 day')
  AND ($4::text IS NULL OR u.email ILIKE '%' || $4 || '%')
  AND ($5::text IS NULL OR al.entity = $5)
  AND ($6::text IS NULL OR al.action = $6)
ORDER BY al.occurred_at DESC`

// TimelineWindow returns one page of rows plus the probe row for hasNext.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	q := timelineQuery + ` LIMIT $7 OFFSET $8`
	rows, err := r.pool.Query(ctx, q,
		filters.CompanyID, nullTime(filters.From), nullTime(filters.To),
		nullString(filters.Actor), nullString(filters.Entity), nullString(filters.Action),
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimelineRows(rows)
}

// TimelineAll returns every matching row, used for export.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineQuery,
		filters.CompanyID, nullTime(filters.From), nullTime(filters.To),
		nullString(filters.Actor), nullString(filters.Entity), nullString(filters.Action))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimelineRows(rows)
}

// PurgeBefore removes audit records older than cutoff, all companies.
func (r *PGRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectTimelineRows(rows pgRows) ([]TimelineRow, error) {
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
