package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/looplj/quotahub/internal/log"
	_ "github.com/looplj/quotahub/internal/pkg/sqlite"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
)

// Query filters snapshot rows. Rows are always returned newest first.
type Query struct {
	CheckerID  string
	WindowType quota.WindowType
	// Since is an inclusive lower bound on checked_at in epoch milliseconds.
	Since *int64
	Limit int
}

// Store is the append-only snapshot table.
type Store struct {
	dialect string
	drv     dialect.Driver

	mu       sync.Mutex
	migrated bool
}

// resolveDialect maps a configured dialect name to the database/sql driver and ent dialect.
func resolveDialect(name string) (driverName, dbDialect string, err error) {
	switch name {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		return "pgx", dialect.Postgres, nil
	case "sqlite3", "sqlite", "":
		return "sqlite3", dialect.SQLite, nil
	case "mysql", "tidb":
		return "mysql", dialect.MySQL, nil
	default:
		return "", "", fmt.Errorf("invalid dialect: %s", name)
	}
}

// SupportedDialect reports whether Open accepts name.
func SupportedDialect(name string) bool {
	_, _, err := resolveDialect(name)
	return err == nil
}

func Open(cfg Config) (*Store, error) {
	driverName, dbDialect, err := resolveDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	if dbDialect == dialect.SQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	var drv dialect.Driver = entsql.OpenDB(dbDialect, sqlDB)
	if cfg.Debug {
		drv = dialect.DebugWithContext(drv, func(ctx context.Context, args ...any) {
			log.Debug(ctx, "quota store query", log.Any("query", args))
		})
	}

	return New(dbDialect, drv), nil
}

func New(dbDialect string, drv dialect.Driver) *Store {
	return &Store{dialect: dbDialect, drv: drv}
}

func (s *Store) Close() error {
	return s.drv.Close()
}

// ensureSchema creates the table on first use. A failed attempt is retried on the next call.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.migrated {
		return nil
	}

	for _, stmt := range schemaStatements(s.dialect) {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("create quota snapshot schema: %w", err)
		}
	}

	s.migrated = true

	return nil
}

func (s *Store) Insert(ctx context.Context, snap *quota.Snapshot) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	if snap.CreatedAt == 0 {
		snap.CreatedAt = xtime.Now().UnixMilli()
	}

	query, args := entsql.Dialect(s.dialect).
		Insert(tableName).
		Columns(columns[1:]...).
		Values(
			snap.Provider,
			snap.CheckerID,
			snap.GroupID,
			string(snap.WindowType),
			snap.WindowLabel,
			snap.Description,
			snap.CheckedAt,
			snap.Limit,
			snap.Used,
			snap.Remaining,
			snap.UtilizationPercent,
			string(snap.Unit),
			snap.ResetsAt,
			string(snap.Status),
			snap.Success,
			snap.ErrorMessage,
			snap.CreatedAt,
		).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert quota snapshot for %s/%s: %w", snap.CheckerID, snap.WindowType, err)
	}

	return nil
}

func (s *Store) Select(ctx context.Context, q Query) ([]quota.Snapshot, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	b := entsql.Dialect(s.dialect)
	t := b.Table(tableName)
	sel := b.Select(columns...).From(t)

	preds := []*entsql.Predicate{entsql.EQ(t.C("checker_id"), q.CheckerID)}
	if q.WindowType != "" {
		preds = append(preds, entsql.EQ(t.C("window_type"), string(q.WindowType)))
	}

	if q.Since != nil {
		preds = append(preds, entsql.GTE(t.C("checked_at"), *q.Since))
	}

	sel.Where(entsql.And(preds...)).OrderBy(entsql.Desc(t.C("checked_at")), entsql.Desc(t.C("id")))

	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	query, args := sel.Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("select quota snapshots for %s: %w", q.CheckerID, err)
	}

	defer rows.Close()

	var out []quota.Snapshot

	for rows.Next() {
		snap, err := scanSnapshot(&rows)
		if err != nil {
			return nil, err
		}

		out = append(out, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read quota snapshots for %s: %w", q.CheckerID, err)
	}

	return out, nil
}

func scanSnapshot(rows *entsql.Rows) (quota.Snapshot, error) {
	var (
		snap                     quota.Snapshot
		groupID, description     sql.NullString
		errorMessage             sql.NullString
		windowType, unit, status string
		limit, used, remaining   sql.NullFloat64
		resetsAt                 sql.NullInt64
	)

	err := rows.Scan(
		&snap.ID,
		&snap.Provider,
		&snap.CheckerID,
		&groupID,
		&windowType,
		&snap.WindowLabel,
		&description,
		&snap.CheckedAt,
		&limit,
		&used,
		&remaining,
		&snap.UtilizationPercent,
		&unit,
		&resetsAt,
		&status,
		&snap.Success,
		&errorMessage,
		&snap.CreatedAt,
	)
	if err != nil {
		return quota.Snapshot{}, fmt.Errorf("scan quota snapshot: %w", err)
	}

	snap.WindowType = quota.WindowType(windowType)
	snap.Unit = quota.Unit(unit)
	snap.Status = quota.Status(status)
	snap.Description = description.String
	snap.GroupID = nullString(groupID)
	snap.ErrorMessage = nullString(errorMessage)
	snap.Limit = nullFloat(limit)
	snap.Used = nullFloat(used)
	snap.Remaining = nullFloat(remaining)

	if resetsAt.Valid {
		snap.ResetsAt = &resetsAt.Int64
	}

	return snap, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}

	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	return &v.Float64
}
