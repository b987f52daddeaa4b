package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when the user already has a record on that calendar day.
var ErrDuplicate = errors.New("attendance record already exists for that day")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a repo.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, user_id, full_name, date, entry_time, exit_time, status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.FullName, &rec.Date, &rec.EntryTime, &rec.ExitTime,
		&status, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

func collect(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

const insertRecord = `
	INSERT INTO attendance_records (id, user_id, full_name, date, day, entry_time, exit_time, status, notes)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

func (r *Repository) insert(ctx context.Context, rec Record, day, suffix string) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, insertRecord+suffix+` RETURNING created_at, updated_at`,
		rec.ID, rec.UserID, rec.FullName, rec.Date, day, rec.EntryTime, rec.ExitTime, string(rec.Status), rec.Notes)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Insert writes a new record dated on day (YYYY-MM-DD in the service zone). ID and
// timestamps are assigned here.
func (r *Repository) Insert(ctx context.Context, rec Record, day string) (Record, error) {
	out, err := r.insert(ctx, rec, day, "")
	if isUniqueViolation(err) {
		return Record{}, ErrDuplicate
	}
	return out, err
}

// InsertIfAbsent writes rec unless the user already has a record on day. It reports
// whether the row was created.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec Record, day string) (Record, bool, error) {
	out, err := r.insert(ctx, rec, day, ` ON CONFLICT (user_id, day) DO NOTHING`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return out, true, nil
}

// Get returns a single record by id, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindForDay returns the user's record dated in [dayStart, dayEnd), or nil.
func (r *Repository) FindForDay(ctx context.Context, userID string, dayStart, dayEnd time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, dayStart, dayEnd)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Update replaces the mutable fields of a record. It returns nil when the id is unknown
// and ErrDuplicate when the user already has another record on day.
func (r *Repository) Update(ctx context.Context, rec Record, day string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET user_id = $2, full_name = $3, date = $4, day = $5, entry_time = $6, exit_time = $7,
		    status = $8, notes = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns,
		rec.ID, rec.UserID, rec.FullName, rec.Date, day, rec.EntryTime, rec.ExitTime, string(rec.Status), rec.Notes)
	out, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &out, nil
}

// SetExitTime records the check-out time unless one is already set. It reports whether
// the row was updated.
func (r *Repository) SetExitTime(ctx context.Context, id, exit string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET exit_time = $2, updated_at = NOW()
		WHERE id = $1 AND exit_time IS NULL
	`, id, exit)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes a record and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListAll returns every record, newest date first.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListBetween returns records dated in [from, to).
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE date >= $1 AND date < $2
		ORDER BY date DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Latest returns the most recently created records.
func (r *Repository) Latest(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// List returns one page of records matching q together with the total match count.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Record, int64, error) {
	var (
		args    []any
		clauses []string
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.UserID != "" {
		clauses = append(clauses, "user_id = "+arg(q.UserID))
	}
	if q.Status != "" {
		clauses = append(clauses, "status = "+arg(string(q.Status)))
	}
	if q.From != nil {
		clauses = append(clauses, "date >= "+arg(*q.From))
	}
	if q.To != nil {
		clauses = append(clauses, "date < "+arg(*q.To))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records` + where +
		` ORDER BY date DESC, created_at DESC LIMIT ` + arg(q.PerPage) + ` OFFSET ` + arg(q.Offset())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	res, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return res, total, nil
}
