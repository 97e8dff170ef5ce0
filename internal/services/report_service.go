package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"financify/internal/core"
	"financify/internal/reports"
	"financify/internal/sheets"
)

// ErrNoQueue is returned by Enqueue when no run queue is configured.
var ErrNoQueue = errors.New("report run queue not configured")

// ReportService runs the pipeline and serves stored reports. Concurrent
// Generate calls share a single pipeline run.
type ReportService struct {
	runner   ReportRunner
	repo     ReportRepository
	queue    RunQueue
	events   EventPublisher
	exporter sheets.ReportExporter
	group    singleflight.Group
}

// ReportServiceOption configures optional collaborators.
type ReportServiceOption func(*ReportService)

// WithRunQueue makes Enqueue hand runs to a worker.
func WithRunQueue(q RunQueue) ReportServiceOption {
	return func(s *ReportService) { s.queue = q }
}

// WithEventPublisher announces created reports after each run.
func WithEventPublisher(p EventPublisher) ReportServiceOption {
	return func(s *ReportService) { s.events = p }
}

// WithExporter mirrors created reports to a sheet after each run.
func WithExporter(e sheets.ReportExporter) ReportServiceOption {
	return func(s *ReportService) { s.exporter = e }
}

func NewReportService(runner ReportRunner, repo ReportRepository, opts ...ReportServiceOption) *ReportService {
	s := &ReportService{runner: runner, repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the pipeline now. Callers arriving while a run is in
// flight receive that run's result. The run itself is detached from the
// caller's cancellation; a cancelled caller stops waiting but the shared
// run completes for the others. Publishing and exporting the created
// reports is best effort and never fails the call.
func (s *ReportService) Generate(ctx context.Context, trigger string) (*reports.RunResult, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("run", func() (any, error) {
		res, err := s.runner.Run(runCtx)
		if err != nil {
			return nil, err
		}
		s.afterRun(runCtx, res)
		return res, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Stopped waiting for report run", "trigger", trigger, "error", ctx.Err())
		return nil, ctx.Err()
	}
	if r.Err != nil {
		slog.ErrorContext(ctx, "Report run failed", "trigger", trigger, "error", r.Err)
		return nil, r.Err
	}

	res := r.Val.(*reports.RunResult)
	slog.InfoContext(ctx, "Report run finished",
		"run_id", res.RunID,
		"trigger", trigger,
		"reports_created", len(res.Reports),
		"shared", r.Shared)
	return res, nil
}

func (s *ReportService) afterRun(ctx context.Context, res *reports.RunResult) {
	if len(res.Reports) == 0 {
		return
	}
	if s.events != nil {
		if err := s.events.PublishReportsCreated(ctx, res); err != nil {
			slog.WarnContext(ctx, "Failed to publish reports created event",
				"run_id", res.RunID, "error", err)
		}
	}
	if s.exporter != nil {
		if err := s.exporter.ExportReports(ctx, res.Reports); err != nil {
			slog.WarnContext(ctx, "Failed to export reports",
				"run_id", res.RunID, "error", err)
		}
	}
}

// CanEnqueue reports whether runs are handed to a worker.
func (s *ReportService) CanEnqueue() bool {
	return s.queue != nil
}

// Enqueue asks a worker to run the pipeline and returns the request id.
func (s *ReportService) Enqueue(ctx context.Context, requestedBy int64, trigger string) (string, error) {
	if s.queue == nil {
		return "", ErrNoQueue
	}
	id, err := s.queue.EnqueueReportRun(ctx, requestedBy, trigger)
	if err != nil {
		return "", fmt.Errorf("enqueue report run: %w", err)
	}
	return id, nil
}

func (s *ReportService) List(ctx context.Context, userID int64) ([]core.Report, error) {
	return s.repo.ListReports(ctx, userID)
}

// Get returns one of the caller's reports; other owners' reports yield
// core.ErrForbidden.
func (s *ReportService) Get(ctx context.Context, userID, id int64) (core.Report, error) {
	r, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return core.Report{}, err
	}
	if r.UserID != userID {
		return core.Report{}, fmt.Errorf("report id %d: %w", id, core.ErrForbidden)
	}
	return r, nil
}
