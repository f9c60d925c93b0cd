package source

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/chartkit/internal/contract"
	"github.com/huangsam/chartkit/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// relationSeparator joins a relationship name and a related column in result aliases.
const relationSeparator = "__"

// SQLSource reads records from one table. Predicates and global filters are
// SQL boolean expressions over the base table alias "t".
type SQLSource struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	cfg     contract.SourceConfig
}

var _ Source = &SQLSource{} // Compile-time check

// OpenSQLSource opens the database of a SQL source and verifies the connection.
func OpenSQLSource(ctx context.Context, cfg contract.SourceConfig) (*SQLSource, error) {
	var driverName string
	connStr := cfg.Connect
	switch cfg.Backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
	case schema.MySQLBackend:
		driverName = "mysql"
		if !strings.Contains(connStr, "parseTime=") {
			if strings.Contains(connStr, "?") {
				connStr += "&parseTime=true"
			} else {
				connStr += "?parseTime=true"
			}
		}
	case schema.PostgreSQLBackend:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Backend, err)
	}
	if cfg.Backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Backend, err)
	}
	return NewSQLSource(db, cfg)
}

// NewSQLSource wraps an open database. Table, column and relationship names
// from cfg are validated here because they are interpolated into queries.
func NewSQLSource(db *sql.DB, cfg contract.SourceConfig) (*SQLSource, error) {
	if err := validateIdent("table", cfg.Table); err != nil {
		return nil, err
	}
	if cfg.SoftDeleteField != "" {
		if err := validateIdent("column", cfg.SoftDeleteField); err != nil {
			return nil, err
		}
	}
	for name, rel := range cfg.Relationships {
		if err := validateIdent("relationship", name); err != nil {
			return nil, err
		}
		for _, ident := range append([]string{rel.Table, rel.LocalKey, rel.ForeignKey}, rel.Fields...) {
			if err := validateIdent("column", ident); err != nil {
				return nil, fmt.Errorf("relationship %q: %w", name, err)
			}
		}
	}
	return &SQLSource{db: db, backend: cfg.Backend, cfg: cfg}, nil
}

// Query implements the Source interface.
func (s *SQLSource) Query() contract.RecordQuery {
	return &sqlQuery{src: s}
}

// Close implements the Source interface.
func (s *SQLSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type sqlQuery struct {
	src        *SQLSource
	orderBy    string
	ranges     []rangeFilter
	predicates []string
	includes   []string
	scope      schema.ScopeModifiers
}

func (q *sqlQuery) OrderBy(field string) { q.orderBy = field }

func (q *sqlQuery) FilterRange(field string, start, end time.Time) {
	q.ranges = append(q.ranges, rangeFilter{field: field, start: start, end: end})
}

func (q *sqlQuery) FilterPredicate(expr string) { q.predicates = append(q.predicates, expr) }

func (q *sqlQuery) IncludeRelationship(name string) {
	if !slices.Contains(q.includes, name) {
		q.includes = append(q.includes, name)
	}
}

func (q *sqlQuery) ApplyScopeModifiers(scope schema.ScopeModifiers) { q.scope = scope }

// Build renders the SELECT statement and its arguments.
func (q *sqlQuery) Build() (string, []any, error) {
	backend := q.src.backend
	cfg := q.src.cfg

	var b strings.Builder
	b.WriteString("SELECT t.*")
	var joins []string
	for i, name := range q.includes {
		rel, ok := cfg.Relationships[name]
		if !ok {
			return "", nil, fmt.Errorf("relationship %q is not configured for table %s", name, cfg.Table)
		}
		alias := fmt.Sprintf("r%d", i)
		for _, field := range rel.Fields {
			fmt.Fprintf(&b, ", %s.%s AS %s", alias, quoteIdent(field, backend), quoteIdent(name+relationSeparator+field, backend))
		}
		joins = append(joins, fmt.Sprintf(" LEFT JOIN %s %s ON %s.%s = t.%s",
			quoteIdent(rel.Table, backend), alias,
			alias, quoteIdent(rel.ForeignKey, backend),
			quoteIdent(rel.LocalKey, backend)))
	}
	fmt.Fprintf(&b, " FROM %s t", quoteIdent(cfg.Table, backend))
	for _, join := range joins {
		b.WriteString(join)
	}

	var where []string
	var args []any
	for _, r := range q.ranges {
		if err := validateIdent("column", r.field); err != nil {
			return "", nil, err
		}
		col := "t." + quoteIdent(r.field, backend)
		if !r.start.IsZero() {
			args = append(args, formatTime(r.start, backend))
			where = append(where, fmt.Sprintf("%s >= %s", col, placeholder(len(args), backend)))
		}
		if !r.end.IsZero() {
			args = append(args, formatTime(r.end, backend))
			where = append(where, fmt.Sprintf("%s < %s", col, placeholder(len(args), backend)))
		}
	}
	for _, expr := range q.predicates {
		where = append(where, "("+expr+")")
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.GlobalFilters)) {
		if !skipsGlobalFilter(q.scope, name) {
			where = append(where, "("+cfg.GlobalFilters[name]+")")
		}
	}
	if cfg.SoftDeleteField != "" {
		col := "t." + quoteIdent(cfg.SoftDeleteField, backend)
		switch {
		case q.scope.OnlyTrashed:
			where = append(where, col+" IS NOT NULL")
		case !q.scope.WithTrashed:
			where = append(where, col+" IS NULL")
		}
	} else if q.scope.OnlyTrashed {
		where = append(where, "1 = 0")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if q.orderBy != "" {
		col, err := q.orderColumn()
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " ORDER BY %s ASC", col)
	}
	return b.String(), args, nil
}

// orderColumn resolves the order field to the base table or to the join
// alias of an included relationship.
func (q *sqlQuery) orderColumn() (string, error) {
	backend := q.src.backend
	name, field, related := contract.SplitRelatedField(q.orderBy)
	if !related {
		if err := validateIdent("column", q.orderBy); err != nil {
			return "", err
		}
		return "t." + quoteIdent(q.orderBy, backend), nil
	}
	if err := validateIdent("relationship", name); err != nil {
		return "", err
	}
	if err := validateIdent("column", field); err != nil {
		return "", err
	}
	i := slices.Index(q.includes, name)
	if i < 0 {
		return "", fmt.Errorf("cannot order by %q: relationship %q is not included", q.orderBy, name)
	}
	return fmt.Sprintf("r%d.%s", i, quoteIdent(field, backend)), nil
}

// Fetch implements the RecordQuery interface.
func (q *sqlQuery) Fetch(ctx context.Context) ([]contract.Record, error) {
	query, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := q.src.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.src.cfg.Table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []contract.Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, q.toRecord(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// toRecord nests joined columns under their relationship. A relationship whose
// columns are all NULL did not match and is left out.
func (q *sqlQuery) toRecord(columns []string, values []any) MapRecord {
	rec := make(MapRecord, len(columns))
	related := make(map[string]MapRecord)
	for i, col := range columns {
		v := values[i]
		if raw, ok := v.([]byte); ok {
			v = string(raw)
		}
		name, field, joined := strings.Cut(col, relationSeparator)
		if joined && slices.Contains(q.includes, name) {
			if related[name] == nil {
				related[name] = MapRecord{}
			}
			related[name][field] = v
			continue
		}
		rec[col] = v
	}
	for name, fields := range related {
		for _, v := range fields {
			if v != nil {
				rec[name] = fields
				break
			}
		}
	}
	return rec
}

// quoteIdent returns the properly quoted identifier for the given backend.
func quoteIdent(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}

// placeholder returns the n-th bind parameter for the given backend.
func placeholder(n int, backend schema.DatabaseBackend) string {
	if backend == schema.PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// formatTime converts a time.Time to the appropriate format for the backend.
// SQLite compares dates as text.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.DateTime)
	}
	return t
}
