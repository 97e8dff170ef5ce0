package backend

import (
	"context"
	"errors"
	"fmt"

	"financify/internal/amqp"
	"financify/internal/log"
	"financify/internal/reports"
	"financify/internal/services"
	"financify/internal/sheets"
	gsheet "financify/internal/sheets/google"
	"financify/internal/storage"
	"financify/internal/storage/memory"
)

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result holds the store and the optional adapters. AMQP and Exporter are
// nil when not configured or when they failed to initialize.
type Result struct {
	Store    Store
	AMQP     *amqp.Client
	Exporter sheets.ReportExporter
	Cleanup  CleanupFunc
}

// ReportService wires the pipeline and the optional adapters into a
// ReportService. When queue is true and AMQP is available, runs requested
// through Enqueue go to the worker.
func (r *Result) ReportService(queue bool) *services.ReportService {
	var opts []services.ReportServiceOption
	if r.AMQP != nil {
		opts = append(opts, services.WithEventPublisher(r.AMQP))
		if queue {
			opts = append(opts, services.WithRunQueue(r.AMQP))
		}
	}
	if r.Exporter != nil {
		opts = append(opts, services.WithExporter(r.Exporter))
	}
	return services.NewReportService(reports.NewPipeline(r.Store), r.Store, opts...)
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{logger: logger}
}

// Create opens the store and the optional adapters. Optional adapters
// that fail to initialize are logged and left out.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	switch config.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store = repo
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case Memory:
		res.Store = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(amqp.Config{
			URL:         config.AMQPURL,
			Exchange:    config.AMQPExchange,
			Queue:       config.AMQPQueue,
			EventsQueue: config.AMQPEventsQueue,
		}, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without it", log.FieldError, err.Error())
		} else {
			res.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"events_queue", config.AMQPEventsQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID: config.GoogleSpreadsheetID,
			ReportsSheet:  config.GoogleReportsSheetName,
		})
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets exporter, continuing without it", log.FieldError, err.Error())
		} else {
			res.Exporter = exporter
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if res.AMQP != nil {
			if err := res.AMQP.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := res.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
		return errors.Join(errs...)
	}
	return res, nil
}
