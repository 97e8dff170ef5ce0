// Package memory is an in-process ReportExporter for tests and the memory
// backend.
package memory

import (
	"context"
	"sync"

	"financify/internal/core"
	ports "financify/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	rows    []core.Report
	batches int
	err     error
}

var _ ports.ReportExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportReports records the reports, or returns the error set by FailWith.
func (e *Exporter) ExportReports(_ context.Context, reports []core.Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	if len(reports) == 0 {
		return nil
	}
	e.rows = append(e.rows, reports...)
	e.batches++
	return nil
}

// FailWith makes subsequent exports fail with err. Pass nil to recover.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Exported returns every report exported so far.
func (e *Exporter) Exported() []core.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Report(nil), e.rows...)
}

// Batches returns the number of non-empty exports.
func (e *Exporter) Batches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batches
}
