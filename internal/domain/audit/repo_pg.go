package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securemed/mednotes/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// chainLockKey serializes appends across processes sharing the database.
const chainLockKey = 7317001

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &auditRepoPG{pool: pool}
}

const auditCols = `id, user_id, action, resource_type, resource_id, details,
	ip_address, user_agent, request_id, status_code, created_at, hash_chain`

func scanLog(row pgx.Row) (*Log, error) {
	var l Log
	err := row.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details,
		&l.IPAddress, &l.UserAgent, &l.RequestID, &l.StatusCode, &l.CreatedAt, &l.HashChain)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *auditRepoPG) Append(ctx context.Context, l *Log) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
			return fmt.Errorf("lock audit chain: %w", err)
		}
		var prev string
		err := tx.QueryRow(ctx, `SELECT hash_chain FROM audit_logs ORDER BY seq DESC LIMIT 1`).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("read last audit hash: %w", err)
		}
		l.HashChain = l.ComputeHash(prev)
		_, err = tx.Exec(ctx, `
			INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details,
				ip_address, user_agent, request_id, status_code, created_at, hash_chain)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			l.ID, l.UserID, l.Action, l.ResourceType, l.ResourceID, l.Details,
			l.IPAddress, l.UserAgent, l.RequestID, l.StatusCode, l.CreatedAt, l.HashChain)
		return err
	})
}

func (r *auditRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error) {
	var where []string
	var args []interface{}
	idx := 1
	if f.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, f.UserID)
		idx++
	}
	if f.ResourceType != "" {
		where = append(where, fmt.Sprintf("resource_type = $%d", idx))
		args = append(args, f.ResourceType)
		idx++
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT `+auditCols+` FROM audit_logs`+clause+` ORDER BY seq DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

func (r *auditRepoPG) Walk(ctx context.Context, fn func(*Log) bool) error {
	rows, err := r.pool.Query(ctx, `SELECT `+auditCols+` FROM audit_logs ORDER BY seq ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return err
		}
		if !fn(l) {
			break
		}
	}
	return rows.Err()
}
