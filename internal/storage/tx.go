package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"financify/internal/reports"
)

// updateChunk bounds the number of bound parameters per UPDATE statement.
const updateChunk = 500

var _ reports.Store = (*SQLiteRepository)(nil)

// Begin implements reports.Store on top of a database transaction.
func (r *SQLiteRepository) Begin(ctx context.Context) (reports.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func checkColumns(table string, columns []string) error {
	known, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for _, c := range columns {
		if !slices.Contains(known, c) {
			return fmt.Errorf("table %s has no column %q", table, c)
		}
	}
	return nil
}

func (t *sqlTx) ReadAll(ctx context.Context, table string) ([]reports.Row, error) {
	if err := checkColumns(table, nil); err != nil {
		return nil, err
	}
	return queryRows(ctx, t.tx, selectRows(table)+` ORDER BY id`)
}

func (t *sqlTx) BulkInsert(ctx context.Context, table string, columns []string, rows []reports.Row) error {
	if err := checkColumns(table, columns); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

func (t *sqlTx) BulkUpdateFlag(ctx context.Context, table, column string, value any, ids []int64) error {
	if err := checkColumns(table, []string{column}); err != nil {
		return err
	}
	for chunk := range slices.Chunk(ids, updateChunk) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, value)
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		query := `UPDATE ` + table + ` SET ` + column + ` = ? WHERE id IN (` + placeholders + `)`
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update %s.%s: %w", table, column, err)
		}
	}
	return nil
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
