package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomigrate "github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/me/timetable/pkg/model"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL through sqlx and lib/pq.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn (a lib/pq connection string or URL).
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "store", "backend", "postgres"),
	}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded up migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")

	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := gomigrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// --- Grids ---

func (s *PostgresStore) ReplaceGrid(ctx context.Context, scope model.Scope, g *model.Grid, records []model.AssignmentRecord) error {
	s.logger.Debug("sql", "op", "replace", "table", "assignments",
		"tenant", scope.TenantID, "term", scope.Term, "class_group", g.ClassGroup, "rows", len(records))

	updatedAt := g.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE tenant_id = $1 AND term = $2 AND class_group = $3`,
		scope.TenantID, scope.Term, g.ClassGroup,
	); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (tenant_id, term, class_group, day, period, start_min, end_min, subject, instructor_id, source, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
			scope.TenantID, scope.Term, g.ClassGroup, string(r.Day), r.Period, int(r.Start), int(r.End),
			r.Subject, r.InstructorID, string(r.Source), string(g.Status),
		)
		if err != nil {
			// The transaction is aborted after a constraint error, so the holder
			// cannot be looked up here.
			if isPgPublishedSlotViolation(err) {
				return &SlotTakenError{InstructorID: r.InstructorID, Slot: r.Key()}
			}
			return fmt.Errorf("insert %s: %w", r.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grids (tenant_id, term, class_group, status, notes, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, term, class_group)
		 DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`,
		scope.TenantID, scope.Term, g.ClassGroup, string(g.Status), pq.Array(notesOrEmpty(g.Notes)), updatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upsert grid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGrid(ctx context.Context, scope model.Scope, classGroup string) (*model.Grid, error) {
	s.logger.Debug("sql", "op", "select", "table", "grids", "class_group", classGroup)

	g := model.NewGrid(classGroup, scope.Term)
	var status string
	var notes pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT status, notes, updated_at FROM grids WHERE tenant_id = $1 AND term = $2 AND class_group = $3`,
		scope.TenantID, scope.Term, classGroup,
	).Scan(&status, &notes, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Status = model.GridStatus(status)
	g.Notes = []string(notes)
	g.UpdatedAt = g.UpdatedAt.UTC()

	var recs []model.AssignmentRecord
	if err := s.db.SelectContext(ctx, &recs,
		`SELECT `+recordColumnsPg+` FROM assignments WHERE tenant_id = $1 AND term = $2 AND class_group = $3`,
		scope.TenantID, scope.Term, classGroup,
	); err != nil {
		return nil, err
	}
	for _, r := range recs {
		g.Slots[r.Key()] = model.Assignment{Subject: r.Subject, InstructorID: r.InstructorID, Source: r.Source}
	}
	return g, nil
}

func (s *PostgresStore) ListGrids(ctx context.Context, scope model.Scope, opts model.ListOptions) ([]model.GridSummary, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "grids", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM grids WHERE tenant_id = $1 AND term = $2 AND ($3 = '' OR status = $3)`,
		scope.TenantID, scope.Term, string(opts.Status),
	); err != nil {
		return nil, 0, err
	}

	rows := []struct {
		ClassGroup string    `db:"class_group"`
		Status     string    `db:"status"`
		UpdatedAt  time.Time `db:"updated_at"`
		Slots      int       `db:"slots"`
	}{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT g.class_group, g.status, g.updated_at,
		   (SELECT COUNT(*) FROM assignments a
		    WHERE a.tenant_id = g.tenant_id AND a.term = g.term AND a.class_group = g.class_group) AS slots
		 FROM grids g
		 WHERE g.tenant_id = $1 AND g.term = $2 AND ($3 = '' OR g.status = $3)
		 ORDER BY g.class_group LIMIT $4 OFFSET $5`,
		scope.TenantID, scope.Term, string(opts.Status), opts.Limit, opts.Offset,
	); err != nil {
		return nil, 0, err
	}

	out := make([]model.GridSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.GridSummary{
			ClassGroup: r.ClassGroup,
			Term:       scope.Term,
			Status:     model.GridStatus(r.Status),
			Slots:      r.Slots,
			UpdatedAt:  r.UpdatedAt.UTC(),
		})
	}
	return out, total, nil
}

func (s *PostgresStore) SetGridStatus(ctx context.Context, scope model.Scope, classGroup string, status model.GridStatus) error {
	s.logger.Debug("sql", "op", "set_status", "table", "grids", "class_group", classGroup, "status", status)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE grids SET status = $1, updated_at = now() WHERE tenant_id = $2 AND term = $3 AND class_group = $4`,
		string(status), scope.TenantID, scope.Term, classGroup,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("grid %s: %w", classGroup, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status = $1 WHERE tenant_id = $2 AND term = $3 AND class_group = $4`,
		string(status), scope.TenantID, scope.Term, classGroup,
	); err != nil {
		if isPgPublishedSlotViolation(err) {
			return fmt.Errorf("grid %s: %w", classGroup, ErrSlotTaken)
		}
		return err
	}
	return tx.Commit()
}

// --- Assignment rows ---

func (s *PostgresStore) FindConflicts(ctx context.Context, scope model.Scope, q model.ConflictQuery) ([]model.AssignmentRecord, error) {
	s.logger.Debug("sql", "op", "find_conflicts", "table", "assignments",
		"instructor_id", q.InstructorID, "day", q.Day, "start", q.Start, "end", q.End)

	var out []model.AssignmentRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+recordColumnsPg+` FROM assignments
		 WHERE tenant_id = $1 AND term = $2 AND instructor_id = $3 AND day = $4
		   AND start_min < $5 AND end_min > $6 AND class_group <> $7
		 ORDER BY CASE status WHEN 'published' THEN 0 ELSE 1 END, class_group, period`,
		scope.TenantID, scope.Term, q.InstructorID, string(q.Day), int(q.End), int(q.Start), q.ExcludeClassGroup,
	)
	return out, err
}

func (s *PostgresStore) ListRecords(ctx context.Context, scope model.Scope, status model.GridStatus) ([]model.AssignmentRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "assignments", "status", status)

	var out []model.AssignmentRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+recordColumnsPg+` FROM assignments
		 WHERE tenant_id = $1 AND term = $2 AND ($3 = '' OR status = $3)
		 ORDER BY class_group, day, period`,
		scope.TenantID, scope.Term, string(status),
	)
	return out, err
}

const recordColumnsPg = `tenant_id, term, class_group, day, period, start_min, end_min, subject,
	COALESCE(instructor_id, '') AS instructor_id, source, status`

func isPgPublishedSlotViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation &&
		pqErr.Constraint == "uq_assignments_published_slot"
}
