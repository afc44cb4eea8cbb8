package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/timetable/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by updates that address a grid the store does not hold.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: SQLite has a single writer, and every ":memory:"
	// connection would otherwise be a separate empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store", "backend", "sqlite"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Grids ---

// ReplaceGrid deletes the grid's rows and inserts records in one transaction,
// then upserts the grid header. A failure leaves the previous rows in place.
func (s *SQLiteStore) ReplaceGrid(ctx context.Context, scope model.Scope, g *model.Grid, records []model.AssignmentRecord) error {
	s.logger.Debug("sql", "op", "replace", "table", "assignments",
		"tenant", scope.TenantID, "term", scope.Term, "class_group", g.ClassGroup, "rows", len(records))

	notesJSON, err := json.Marshal(notesOrEmpty(g.Notes))
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	updatedAt := g.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE tenant_id = ? AND term = ? AND class_group = ?`,
		scope.TenantID, scope.Term, g.ClassGroup,
	); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (tenant_id, term, class_group, day, period, start_min, end_min, subject, instructor_id, source, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
			scope.TenantID, scope.Term, g.ClassGroup, string(r.Day), r.Period, int(r.Start), int(r.End),
			r.Subject, r.InstructorID, string(r.Source), string(g.Status),
		)
		if err != nil {
			if isPublishedSlotViolation(err) {
				taken := &SlotTakenError{InstructorID: r.InstructorID, Slot: r.Key()}
				tx.QueryRowContext(ctx,
					`SELECT class_group FROM assignments
					 WHERE tenant_id = ? AND term = ? AND instructor_id = ? AND day = ? AND period = ? AND status = 'published'`,
					scope.TenantID, scope.Term, r.InstructorID, string(r.Day), r.Period,
				).Scan(&taken.Holder)
				return taken
			}
			return fmt.Errorf("insert %s: %w", r.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grids (tenant_id, term, class_group, status, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, term, class_group)
		 DO UPDATE SET status = excluded.status, notes = excluded.notes, updated_at = excluded.updated_at`,
		scope.TenantID, scope.Term, g.ClassGroup, string(g.Status), string(notesJSON),
		updatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert grid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGrid(ctx context.Context, scope model.Scope, classGroup string) (*model.Grid, error) {
	s.logger.Debug("sql", "op", "select", "table", "grids", "class_group", classGroup)

	g := model.NewGrid(classGroup, scope.Term)
	var status, notesJSON, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT status, notes, updated_at FROM grids WHERE tenant_id = ? AND term = ? AND class_group = ?`,
		scope.TenantID, scope.Term, classGroup,
	).Scan(&status, &notesJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Status = model.GridStatus(status)
	if err := json.Unmarshal([]byte(notesJSON), &g.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT day, period, subject, COALESCE(instructor_id, ''), source
		 FROM assignments WHERE tenant_id = ? AND term = ? AND class_group = ?`,
		scope.TenantID, scope.Term, classGroup,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var day, source string
		var key model.SlotKey
		var a model.Assignment
		if err := rows.Scan(&day, &key.Period, &a.Subject, &a.InstructorID, &source); err != nil {
			return nil, err
		}
		key.Day = model.Day(day)
		a.Source = model.AssignmentSource(source)
		g.Slots[key] = a
	}
	return g, rows.Err()
}

func (s *SQLiteStore) ListGrids(ctx context.Context, scope model.Scope, opts model.ListOptions) ([]model.GridSummary, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "grids", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := "WHERE g.tenant_id = ? AND g.term = ?"
	args := []any{scope.TenantID, scope.Term}
	if opts.Status != "" {
		where += " AND g.status = ?"
		args = append(args, string(opts.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grids g `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT g.class_group, g.status, g.updated_at,
		   (SELECT COUNT(*) FROM assignments a
		    WHERE a.tenant_id = g.tenant_id AND a.term = g.term AND a.class_group = g.class_group)
		 FROM grids g `+where+` ORDER BY g.class_group LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.GridSummary
	for rows.Next() {
		var sum model.GridSummary
		var status, updatedAt string
		if err := rows.Scan(&sum.ClassGroup, &status, &updatedAt, &sum.Slots); err != nil {
			return nil, 0, err
		}
		sum.Term = scope.Term
		sum.Status = model.GridStatus(status)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, sum)
	}
	return out, total, rows.Err()
}

// SetGridStatus flips the status of a grid and all of its rows without touching
// slot data.
func (s *SQLiteStore) SetGridStatus(ctx context.Context, scope model.Scope, classGroup string, status model.GridStatus) error {
	s.logger.Debug("sql", "op", "set_status", "table", "grids", "class_group", classGroup, "status", status)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE grids SET status = ?, updated_at = ? WHERE tenant_id = ? AND term = ? AND class_group = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), scope.TenantID, scope.Term, classGroup,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("grid %s: %w", classGroup, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status = ? WHERE tenant_id = ? AND term = ? AND class_group = ?`,
		string(status), scope.TenantID, scope.Term, classGroup,
	); err != nil {
		if isPublishedSlotViolation(err) {
			return fmt.Errorf("grid %s: %w", classGroup, ErrSlotTaken)
		}
		return err
	}

	return tx.Commit()
}

// --- Assignment rows ---

// FindConflicts returns rows of other class groups where the instructor teaches
// during an overlapping interval on the same day. Published rows come first.
func (s *SQLiteStore) FindConflicts(ctx context.Context, scope model.Scope, q model.ConflictQuery) ([]model.AssignmentRecord, error) {
	s.logger.Debug("sql", "op", "find_conflicts", "table", "assignments",
		"instructor_id", q.InstructorID, "day", q.Day, "start", q.Start, "end", q.End)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM assignments
		 WHERE tenant_id = ? AND term = ? AND instructor_id = ? AND day = ?
		   AND start_min < ? AND end_min > ? AND class_group != ?
		 ORDER BY CASE status WHEN 'published' THEN 0 ELSE 1 END, class_group, period`,
		scope.TenantID, scope.Term, q.InstructorID, string(q.Day), int(q.End), int(q.Start), q.ExcludeClassGroup,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListRecords returns every row of the scope, optionally filtered by status.
func (s *SQLiteStore) ListRecords(ctx context.Context, scope model.Scope, status model.GridStatus) ([]model.AssignmentRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "assignments", "status", status)

	query := `SELECT ` + recordColumns + ` FROM assignments WHERE tenant_id = ? AND term = ?`
	args := []any{scope.TenantID, scope.Term}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY class_group, day, period`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

const recordColumns = `tenant_id, term, class_group, day, period, start_min, end_min, subject,
	COALESCE(instructor_id, ''), source, status`

func scanRecords(rows *sql.Rows) ([]model.AssignmentRecord, error) {
	var out []model.AssignmentRecord
	for rows.Next() {
		var r model.AssignmentRecord
		var day, source, status string
		var start, end int
		if err := rows.Scan(&r.TenantID, &r.Term, &r.ClassGroup, &day, &r.Period, &start, &end,
			&r.Subject, &r.InstructorID, &source, &status); err != nil {
			return nil, err
		}
		r.Day = model.Day(day)
		r.Start = model.Clock(start)
		r.End = model.Clock(end)
		r.Source = model.AssignmentSource(source)
		r.Status = model.GridStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// isPublishedSlotViolation reports whether err comes from uq_assignments_published_slot.
// The primary key violation message lists class_group instead of instructor_id.
func isPublishedSlotViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "instructor_id")
}

func notesOrEmpty(notes []string) []string {
	if notes == nil {
		return []string{}
	}
	return notes
}
