package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const defaultMaxRows = 200

// DatabaseQuery is the argument object of the ask_database tool.
type DatabaseQuery struct {
	Query string `json:"query" jsonschema_description:"SQL query extracting info to answer the user's question."`
}

// QueryResult is the tabular result of a query, or an error payload.
type QueryResult struct {
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Database is a read-only SQLite handle used by the ask_database tool.
type Database struct {
	db      *sql.DB
	maxRows int
}

// OpenDatabase opens the SQLite file at path in read-only mode.
func OpenDatabase(path string, maxRows int) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("open database: empty path")
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return &Database{db: db, maxRows: maxRows}, nil
}

func (d *Database) Close() error { return d.db.Close() }

// TableNames lists the user tables in the database.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ColumnNames lists the columns of table in declaration order.
func (d *Database) ColumnNames(ctx context.Context, table string) ([]string, error) {
	q := fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''"))
	result := d.run(ctx, q)
	if result.Error != "" {
		return nil, fmt.Errorf("columns of %s: %s", table, result.Error)
	}
	nameIdx := -1
	for i, c := range result.Columns {
		if c == "name" {
			nameIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("columns of %s: unexpected table_info result", table)
	}
	cols := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		cols = append(cols, fmt.Sprint(row[nameIdx]))
	}
	return cols, nil
}

// SchemaSummary renders every table as "Table: X\nColumns: a, b" lines.
func (d *Database) SchemaSummary(ctx context.Context) (string, error) {
	tables, err := d.TableNames(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		cols, err := d.ColumnNames(ctx, t)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("Table: %s\nColumns: %s", t, strings.Join(cols, ", ")))
	}
	return strings.Join(parts, "\n"), nil
}

// Ask runs a model-authored query. Failures are reported in the result.
func (d *Database) Ask(ctx context.Context, in DatabaseQuery) (QueryResult, error) {
	return d.run(ctx, in.Query), nil
}

func (d *Database) run(ctx context.Context, query string) QueryResult {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{Error: fmt.Sprintf("query failed with error: %v", err)}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{Error: fmt.Sprintf("query failed with error: %v", err)}
	}

	result := QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) >= d.maxRows {
			result.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{Error: fmt.Sprintf("query failed with error: %v", err)}
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{Error: fmt.Sprintf("query failed with error: %v", err)}
	}
	return result
}

// NewAskDatabaseTool returns the ask_database tool. The query parameter
// description embeds the live database schema so the model can write SQL
// against it.
func NewAskDatabaseTool(ctx context.Context, d *Database) (*FuncTool[DatabaseQuery, QueryResult], error) {
	summary, err := d.SchemaSummary(ctx)
	if err != nil {
		return nil, err
	}
	desc := "SQL query extracting info to answer the user's question.\n" +
		"SQL should be written using this database schema:\n" +
		summary + "\n" +
		"The query should be returned in plain text, not in JSON."

	t := NewFunc(string(ToolAskDatabase),
		"Use this function to answer user questions about music. Input should be a fully formed SQL query.",
		d.Ask)
	params, err := WithPropertyDescription(t.Parameters(), "query", desc)
	if err != nil {
		return nil, err
	}
	return t.WithParameters(params), nil
}
