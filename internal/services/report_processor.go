package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"financify/internal/reports"
)

// Generator is the part of ReportService the processor drives.
type Generator interface {
	Generate(ctx context.Context, trigger string) (*reports.RunResult, error)
}

// ReportProcessorConfig holds configuration for the report processor
type ReportProcessorConfig struct {
	// Interval between scheduled runs (default: 1h)
	Interval time.Duration

	// RunOnStart triggers a run as soon as the processor starts (default: true)
	RunOnStart bool
}

// DefaultReportProcessorConfig returns sensible defaults
func DefaultReportProcessorConfig() ReportProcessorConfig {
	return ReportProcessorConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// ReportProcessor runs the report pipeline on a fixed schedule.
type ReportProcessor struct {
	generator Generator
	config    ReportProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportProcessor(generator Generator, config ReportProcessorConfig) *ReportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultReportProcessorConfig().Interval
	}
	return &ReportProcessor{
		generator: generator,
		config:    config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ReportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("report processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Report processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the run in progress to finish.
func (p *ReportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	if p.doneCh == doneCh {
		p.running = false
	}
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ReportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.doneCh == doneCh {
			p.running = false
		}
		p.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.runOnce(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ReportProcessor) runOnce(ctx context.Context) {
	// errors are logged by the generator
	_, _ = p.generator.Generate(ctx, reports.TriggerSchedule)
}
