// Package worker turns queued run requests into pipeline runs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/reports"
	"financify/internal/services"
)

// ReportWorker handles report run requests consumed from AMQP.
type ReportWorker struct {
	generator services.Generator
}

func NewReportWorker(generator services.Generator) *ReportWorker {
	return &ReportWorker{generator: generator}
}

// HandleRunMessage runs the pipeline for one request. Failures that a
// retry cannot fix, such as a malformed stored row or a duplicate month,
// are returned as amqp.PermanentError so the delivery is dropped; store
// failures are returned as is so the delivery is requeued.
func (w *ReportWorker) HandleRunMessage(ctx context.Context, msg *amqp.ReportRunMessage) error {
	slog.InfoContext(ctx, "Processing report run request",
		"request_id", msg.RequestID,
		"requested_by", msg.RequestedBy,
		"trigger", msg.Trigger)

	res, err := w.generator.Generate(ctx, reports.TriggerQueue)
	if err != nil {
		err = fmt.Errorf("report run %s: %w", msg.RequestID, err)
		if isPermanent(err) {
			return amqp.Permanent(err)
		}
		return err
	}

	slog.InfoContext(ctx, "Report run request completed",
		"request_id", msg.RequestID,
		"run_id", res.RunID,
		"reports_created", len(res.Reports),
		"no_op", res.NoOp)
	return nil
}

func isPermanent(err error) bool {
	return reports.IsParseError(err) || errors.Is(err, core.ErrDuplicateMonth)
}
