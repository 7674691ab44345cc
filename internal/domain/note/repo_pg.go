package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &noteRepoPG{pool: pool}
}

func (r *noteRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const noteCols = `n.id, n.patient_id, COALESCE(p.first_name || ' ' || p.last_name, ''),
	n.author_id, n.author_name, n.note_type, n.title, n.content, n.status,
	n.summary, n.risk_level, n.recommendations, n.tags, n.created_at, n.updated_at`

const noteFrom = ` FROM notes n LEFT JOIN patients p ON p.id = n.patient_id`

func (r *noteRepoPG) scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.PatientID, &n.PatientName,
		&n.AuthorID, &n.AuthorName, &n.NoteType, &n.Title, &n.Content, &n.Status,
		&n.Summary, &n.RiskLevel, &n.Recommendations, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

func (r *noteRepoPG) collect(rows pgx.Rows) ([]*Note, error) {
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		n, err := r.scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *noteRepoPG) Create(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	if n.Tags == nil {
		n.Tags = []string{}
	}
	var createdAt *time.Time
	if !n.CreatedAt.IsZero() {
		createdAt = &n.CreatedAt
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notes (id, patient_id, author_id, author_name, note_type, title, content, status, tags,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, COALESCE($10, NOW()), COALESCE($10, NOW()))
		RETURNING created_at, updated_at`,
		n.ID, n.PatientID, n.AuthorID, n.AuthorName, n.NoteType, n.Title, n.Content, n.Status, n.Tags,
		createdAt,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: patient %s does not exist", ErrInvalid, n.PatientID)
	}
	return err
}

func (r *noteRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return r.scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+noteFrom+` WHERE n.id = $1`, id))
}

func (r *noteRepoPG) Update(ctx context.Context, n *Note) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE notes SET title=$2, content=$3, status=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		n.ID, n.Title, n.Content, n.Status,
	).Scan(&n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *noteRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Note, int, error) {
	var where []string
	var args []interface{}
	if f.NoteType != "" {
		args = append(args, f.NoteType)
		where = append(where, fmt.Sprintf("n.note_type = $%d", len(args)))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("n.patient_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notes n`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s%s%s ORDER BY n.created_at DESC LIMIT $%d OFFSET $%d`,
		noteCols, noteFrom, clause, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+noteFrom+` WHERE n.patient_id = $1 ORDER BY n.created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *noteRepoPG) ListHighRisk(ctx context.Context, limit int) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+noteFrom+`
		WHERE UPPER(n.risk_level) IN ('HIGH', 'CRITICAL')
		ORDER BY n.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *noteRepoPG) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+noteFrom+`
		WHERE n.created_at >= $1 AND n.created_at < $2
		ORDER BY n.created_at`, from, to)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *noteRepoPG) UpdateAnalysis(ctx context.Context, id uuid.UUID, a Analysis) error {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notes SET summary=$2, risk_level=$3, recommendations=$4, tags=$5, updated_at=NOW()
		WHERE id = $1`,
		id, a.Summary, a.RiskLevel, a.Recommendations, a.Tags)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
