package services

import (
	"context"
	"fmt"
	"log/slog"

	"financify/internal/core"
)

// StatementService manages the caller's assets and liabilities.
type StatementService struct {
	repo StatementRepository
}

func NewStatementService(repo StatementRepository) *StatementService {
	return &StatementService{repo: repo}
}

// IsStatementTable reports whether table holds statements.
func IsStatementTable(table string) bool {
	return table == core.TableAssets || table == core.TableLiabilities
}

// Create validates and stores a new unused statement owned by userID.
func (s *StatementService) Create(ctx context.Context, table string, userID int64, st core.Statement) (core.Statement, error) {
	if !IsStatementTable(table) {
		return core.Statement{}, fmt.Errorf("unknown statement table %q", table)
	}
	st.UserID = userID
	st.Used = false
	if err := st.Validate(); err != nil {
		return core.Statement{}, core.Invalid(err)
	}

	created, err := s.repo.CreateStatement(ctx, table, st)
	if err != nil {
		return core.Statement{}, fmt.Errorf("create %s: %w", table, err)
	}
	slog.InfoContext(ctx, "Statement created",
		"table", table,
		"id", created.ID,
		"user_id", userID)
	return created, nil
}

func (s *StatementService) List(ctx context.Context, table string, userID int64) ([]core.Statement, error) {
	if !IsStatementTable(table) {
		return nil, fmt.Errorf("unknown statement table %q", table)
	}
	return s.repo.ListStatements(ctx, table, userID)
}

// Delete removes one of the caller's statements. Other owners' statements
// yield core.ErrForbidden and statements already folded into a report
// yield core.ErrConflict.
func (s *StatementService) Delete(ctx context.Context, table string, userID, id int64) error {
	if !IsStatementTable(table) {
		return fmt.Errorf("unknown statement table %q", table)
	}
	st, err := s.repo.GetStatement(ctx, table, id)
	if err != nil {
		return err
	}
	if st.UserID != userID {
		return fmt.Errorf("%s id %d: %w", table, id, core.ErrForbidden)
	}
	if st.Used {
		return fmt.Errorf("%s id %d already reported: %w", table, id, core.ErrConflict)
	}
	// the store re-checks used so a concurrent run cannot be undercut
	if err := s.repo.DeleteStatement(ctx, table, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Statement deleted", "table", table, "id", id, "user_id", userID)
	return nil
}
