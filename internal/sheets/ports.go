package sheets

import (
	"context"

	"financify/internal/core"
)

// ReportExporter mirrors freshly created reports to an external sheet.
type ReportExporter interface {
	ExportReports(ctx context.Context, reports []core.Report) error
}
