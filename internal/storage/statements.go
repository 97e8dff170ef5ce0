package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"financify/internal/core"
	"financify/internal/reports"
)

// tableColumns whitelists the tables the row-level API may touch, in the
// column order the report pipeline decodes.
var tableColumns = map[string][]string{
	core.TableAssets:      reports.StatementColumns,
	core.TableLiabilities: reports.StatementColumns,
	core.TableReports:     reports.ReportColumns,
}

func statementTable(table string) error {
	if table != core.TableAssets && table != core.TableLiabilities {
		return fmt.Errorf("unknown statement table %q", table)
	}
	return nil
}

func selectRows(table string) string {
	return "SELECT " + strings.Join(tableColumns[table], ", ") + " FROM " + table
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRows returns rows as positional values, exactly as the driver
// reports them.
func queryRows(ctx context.Context, q querier, query string, args ...any) ([]reports.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []reports.Row
	for rows.Next() {
		row := make(reports.Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CreateStatement stores a new, unused asset or liability.
func (r *SQLiteRepository) CreateStatement(ctx context.Context, table string, s core.Statement) (core.Statement, error) {
	if err := statementTable(table); err != nil {
		return core.Statement{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (date, description, value, used, user_id) VALUES (?, ?, ?, 0, ?)`,
		s.Date.String(), s.Description, s.Value.String(), s.UserID)
	if err != nil {
		return core.Statement{}, fmt.Errorf("create %s: %w", table, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return core.Statement{}, fmt.Errorf("create %s: %w", table, err)
	}
	s.Used = false

	slog.InfoContext(ctx, "Statement saved to SQLite",
		"table", table,
		"id", s.ID,
		"user_id", s.UserID,
		"date", s.Date.String(),
		"value", s.Value.String())

	return s, nil
}

func (r *SQLiteRepository) GetStatement(ctx context.Context, table string, id int64) (core.Statement, error) {
	if err := statementTable(table); err != nil {
		return core.Statement{}, err
	}
	rows, err := queryRows(ctx, r.db, selectRows(table)+` WHERE id = ?`, id)
	if err != nil {
		return core.Statement{}, fmt.Errorf("get %s id %d: %w", table, id, err)
	}
	if len(rows) == 0 {
		return core.Statement{}, fmt.Errorf("%s id %d: %w", table, id, core.ErrNotFound)
	}
	parsed, err := reports.ParseStatements(table, rows)
	if err != nil {
		return core.Statement{}, err
	}
	return parsed[0], nil
}

func (r *SQLiteRepository) ListStatements(ctx context.Context, table string, userID int64) ([]core.Statement, error) {
	if err := statementTable(table); err != nil {
		return nil, err
	}
	rows, err := queryRows(ctx, r.db, selectRows(table)+` WHERE user_id = ? ORDER BY date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return reports.ParseStatements(table, rows)
}

// DeleteStatement removes an unused statement. Statements already folded
// into a report are refused with core.ErrConflict.
func (r *SQLiteRepository) DeleteStatement(ctx context.Context, table string, id int64) error {
	if err := statementTable(table); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND used = 0`, id)
	if err != nil {
		return fmt.Errorf("delete %s id %d: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete %s id %d: %w", table, id, err)
	} else if n == 1 {
		slog.InfoContext(ctx, "Row deleted", "table", table, "id", id)
		return nil
	}

	if _, err := r.GetStatement(ctx, table, id); err != nil {
		return err
	}
	return fmt.Errorf("%s id %d already reported: %w", table, id, core.ErrConflict)
}

func (r *SQLiteRepository) ListReports(ctx context.Context, userID int64) ([]core.Report, error) {
	rows, err := queryRows(ctx, r.db, selectRows(core.TableReports)+` WHERE user_id = ? ORDER BY date`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports.ParseReports(rows)
}

func (r *SQLiteRepository) GetReport(ctx context.Context, id int64) (core.Report, error) {
	rows, err := queryRows(ctx, r.db, selectRows(core.TableReports)+` WHERE id = ?`, id)
	if err != nil {
		return core.Report{}, fmt.Errorf("get report id %d: %w", id, err)
	}
	if len(rows) == 0 {
		return core.Report{}, fmt.Errorf("report id %d: %w", id, core.ErrNotFound)
	}
	parsed, err := reports.ParseReports(rows)
	if err != nil {
		return core.Report{}, err
	}
	return parsed[0], nil
}
