package services

import (
	"context"

	"financify/internal/core"
	"financify/internal/reports"
)

// Repositories the services depend on. Both storage backends satisfy all
// of them.
type (
	StatementRepository interface {
		CreateStatement(ctx context.Context, table string, s core.Statement) (core.Statement, error)
		GetStatement(ctx context.Context, table string, id int64) (core.Statement, error)
		ListStatements(ctx context.Context, table string, userID int64) ([]core.Statement, error)
		DeleteStatement(ctx context.Context, table string, id int64) error
	}

	ExpenseRepository interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	PatternRepository interface {
		CreatePattern(ctx context.Context, p core.Pattern) (core.Pattern, error)
		GetPattern(ctx context.Context, id int64) (core.Pattern, error)
		GetPatternByTitle(ctx context.Context, userID int64, title string) (core.Pattern, error)
		ListPatterns(ctx context.Context, userID int64) ([]core.Pattern, error)
	}

	UserRepository interface {
		CreateUser(ctx context.Context, username, apiKey string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	ReportRepository interface {
		ListReports(ctx context.Context, userID int64) ([]core.Report, error)
		GetReport(ctx context.Context, id int64) (core.Report, error)
	}

	// ReportRunner runs the aggregation pipeline.
	ReportRunner interface {
		Run(ctx context.Context) (*reports.RunResult, error)
	}

	// RunQueue hands run requests to a worker.
	RunQueue interface {
		EnqueueReportRun(ctx context.Context, requestedBy int64, trigger string) (string, error)
	}

	// EventPublisher announces the reports of a finished run.
	EventPublisher interface {
		PublishReportsCreated(ctx context.Context, res *reports.RunResult) error
	}
)
