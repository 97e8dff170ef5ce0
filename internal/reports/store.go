// Package reports rolls unreported asset and liability statements into
// monthly net-worth reports.
//
// The package only depends on the narrow Store contract below; the SQLite
// repository and the in-memory store both satisfy it.
package reports

import (
	"context"

	"financify/internal/core"
)

// Row is one stored record in the fixed column order of its table.
type Row []any

// Column order of the statement tables (assets, liabilities). The trailing
// user_id column is optional on read.
var StatementColumns = []string{"id", "date", "description", "value", "used", "user_id"}

// Column order of the reports table. The trailing user_id column is optional
// on read.
var ReportColumns = []string{"id", "date", "asset_ids", "liability_ids", "net_worth", "user_id"}

// Tx is a unit of work over the statement and report tables.
// Writes are only visible to other readers after Commit.
type Tx interface {
	ReadAll(ctx context.Context, table string) ([]Row, error)
	BulkInsert(ctx context.Context, table string, columns []string, rows []Row) error
	BulkUpdateFlag(ctx context.Context, table, column string, value any, ids []int64) error
	Commit() error
	Rollback() error
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// ReportRow renders r in ReportColumns order.
func ReportRow(r core.Report) Row {
	return Row{
		r.ID,
		string(r.Date),
		core.JoinIDs(r.AssetIDs),
		core.JoinIDs(r.LiabilityIDs),
		r.NetWorth.Amount.StringFixed(2),
		r.UserID,
	}
}

// StatementRow renders s in StatementColumns order.
func StatementRow(s core.Statement) Row {
	used := int64(0)
	if s.Used {
		used = 1
	}
	return Row{s.ID, s.Date.String(), s.Description, s.Value.String(), used, s.UserID}
}
