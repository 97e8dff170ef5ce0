package http

import (
	"errors"
	"fmt"
	"net/http"

	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware/auth"
)

// statementMessage renders the client-facing text for a failed delete.
func statementMessage(err error, table string, id int64) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return fmt.Sprintf("%s id %d not found", table, id)
	case errors.Is(err, core.ErrForbidden):
		return fmt.Sprintf("no access to %s id %d", table, id)
	case errors.Is(err, core.ErrConflict):
		return fmt.Sprintf("%s id %d already reported", table, id)
	}
	return ""
}

func (s *Server) handleStatements(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())

		if r.Method == http.MethodGet {
			list, err := s.deps.Statements.List(r.Context(), table, user.ID)
			if err != nil {
				s.writeServiceError(w, r, err, log.OpList, "")
				return
			}
			if list == nil {
				list = []core.Statement{}
			}
			NewJSONResponse().Body(list).Write(w)
			return
		}

		parser := NewRequestBodyParser(r)
		if err := parser.Parse(); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		if err := parser.Require("date", "value", "description"); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		date, err := parseDate(parser.Get("date"))
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		value, err := parseAmount(parser.Get("value"))
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		created, err := s.deps.Statements.Create(r.Context(), table, user.ID, core.Statement{
			Date:        date,
			Description: parser.Get("description"),
			Value:       value,
		})
		if err != nil {
			s.writeServiceError(w, r, err, log.OpCreate, "")
			return
		}
		s.sl.LogRecordChange(r.Context(), log.OpCreate, user.ID, table, created.ID)
		NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
	}
}

func (s *Server) handleDeleteStatement(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())

		id, err := parseID(r, table)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		if err := s.deps.Statements.Delete(r.Context(), table, user.ID, id); err != nil {
			s.writeServiceError(w, r, err, log.OpDelete, statementMessage(err, table, id))
			return
		}
		s.sl.LogRecordChange(r.Context(), log.OpDelete, user.ID, table, id)
		NewJSONResponse().Body(deletedBody{Table: table, DeletedID: id}).Write(w)
	}
}

type deletedBody struct {
	Table     string `json:"table"`
	DeletedID int64  `json:"deleted_id"`
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if r.Method == http.MethodGet {
		list, err := s.deps.Expenses.List(r.Context(), user.ID)
		if err != nil {
			s.writeServiceError(w, r, err, log.OpList, "")
			return
		}
		if list == nil {
			list = []core.Expense{}
		}
		NewJSONResponse().Body(list).Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := parser.Require("date"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	// "value" is accepted as an alias so statements and expenses share a body shape
	rawAmount := parser.First("amount", "value")
	if rawAmount == "" {
		BadRequestError((&MissingFieldError{Field: "amount"}).Error()).Write(w)
		return
	}
	if err := parser.Require("description"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	date, err := parseDate(parser.Get("date"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.deps.Expenses.Create(r.Context(), user.ID, core.Expense{
		Date:        date,
		Description: parser.Get("description"),
		Amount:      amount,
	})
	if err != nil {
		s.writeServiceError(w, r, err, log.OpCreate, "")
		return
	}
	s.sl.LogRecordChange(r.Context(), log.OpCreate, user.ID, core.TableExpenses, created.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := parseID(r, core.TableExpenses)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), user.ID, id); err != nil {
		s.writeServiceError(w, r, err, log.OpDelete, statementMessage(err, core.TableExpenses, id))
		return
	}
	s.sl.LogRecordChange(r.Context(), log.OpDelete, user.ID, core.TableExpenses, id)
	NewJSONResponse().Body(deletedBody{Table: core.TableExpenses, DeletedID: id}).Write(w)
}
