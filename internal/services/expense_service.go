package services

import (
	"context"
	"fmt"
	"log/slog"

	"financify/internal/core"
)

// ExpenseService manages the caller's expenses. Expenses are standalone
// records and never take part in report runs.
type ExpenseService struct {
	repo ExpenseRepository
}

func NewExpenseService(repo ExpenseRepository) *ExpenseService {
	return &ExpenseService{repo: repo}
}

func (s *ExpenseService) Create(ctx context.Context, userID int64, e core.Expense) (core.Expense, error) {
	e.UserID = userID
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.Invalid(err)
	}
	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense created", "id", created.ID, "user_id", userID)
	return created, nil
}

func (s *ExpenseService) List(ctx context.Context, userID int64) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, userID)
}

// Delete removes one of the caller's expenses.
func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return fmt.Errorf("expense id %d: %w", id, core.ErrForbidden)
	}
	return s.repo.DeleteExpense(ctx, id)
}
