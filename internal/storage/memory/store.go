// Package memory is an in-process store used by tests and by the memory
// backend. Statement and report tables are kept as rows so the report
// pipeline runs against it unchanged.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"financify/internal/core"
	"financify/internal/reports"
)

var errTxDone = errors.New("transaction already finished")

type table struct {
	columns []string
	rows    []reports.Row
}

func (t *table) clone() *table {
	rows := make([]reports.Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = slices.Clone(r)
	}
	return &table{columns: t.columns, rows: rows}
}

func (t *table) index(column string) int {
	return slices.Index(t.columns, column)
}

// Store holds every table in memory. A running transaction holds the store
// lock until it commits or rolls back.
type Store struct {
	mu       sync.Mutex
	tables   map[string]*table
	users    []core.User
	expenses []core.Expense
	patterns []core.Pattern
	lastID   map[string]int64
	failures map[string]error
}

var _ reports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: map[string]*table{
			core.TableAssets:      {columns: reports.StatementColumns},
			core.TableLiabilities: {columns: reports.StatementColumns},
			core.TableReports:     {columns: reports.ReportColumns},
		},
		lastID:   make(map[string]int64),
		failures: make(map[string]error),
	}
}

// Seed appends raw rows to a table, bypassing validation.
func (s *Store) Seed(name string, rows ...reports.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[name]
	for _, r := range rows {
		t.rows = append(t.rows, slices.Clone(r))
		if id, ok := r[0].(int64); ok {
			s.lastID[name] = max(s.lastID[name], id)
		}
	}
}

// Rows returns a copy of the committed rows of a table.
func (s *Store) Rows(name string) []reports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[name].clone().rows
}

// FailOn makes the next matching operation fail with err. op is one of
// begin, read, insert, update, commit.
func (s *Store) FailOn(op, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+":"+name] = err
}

func (s *Store) takeFailure(op, name string) error {
	key := op + ":" + name
	err := s.failures[key]
	delete(s.failures, key)
	return err
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Begin implements reports.Store.
func (s *Store) Begin(ctx context.Context) (reports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if err := s.takeFailure("begin", ""); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	view := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		view[name] = t.clone()
	}
	return &tx{store: s, view: view}, nil
}

type tx struct {
	store *Store
	view  map[string]*table
	done  bool
}

func (t *tx) lookup(name string) (*table, error) {
	if t.done {
		return nil, errTxDone
	}
	tbl, ok := t.view[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return tbl, nil
}

func (t *tx) ReadAll(_ context.Context, name string) ([]reports.Row, error) {
	tbl, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := t.store.takeFailure("read", name); err != nil {
		return nil, err
	}
	return tbl.clone().rows, nil
}

func (t *tx) BulkInsert(_ context.Context, name string, columns []string, rows []reports.Row) error {
	tbl, err := t.lookup(name)
	if err != nil {
		return err
	}
	if err := t.store.takeFailure("insert", name); err != nil {
		return err
	}
	positions := make([]int, len(columns))
	for i, c := range columns {
		if positions[i] = tbl.index(c); positions[i] < 0 {
			return fmt.Errorf("table %s has no column %q", name, c)
		}
	}
	for _, in := range rows {
		if len(in) != len(columns) {
			return fmt.Errorf("row has %d values for %d columns", len(in), len(columns))
		}
		row := make(reports.Row, len(tbl.columns))
		for i, v := range in {
			row[positions[i]] = v
		}
		if idx := slices.IndexFunc(tbl.rows, func(r reports.Row) bool { return r[0] == row[0] }); idx >= 0 {
			return fmt.Errorf("%w: %s id %v exists", core.ErrConflict, name, row[0])
		}
		tbl.rows = append(tbl.rows, row)
	}
	return nil
}

func (t *tx) BulkUpdateFlag(_ context.Context, name, column string, value any, ids []int64) error {
	tbl, err := t.lookup(name)
	if err != nil {
		return err
	}
	if err := t.store.takeFailure("update", name); err != nil {
		return err
	}
	col := tbl.index(column)
	if col < 0 {
		return fmt.Errorf("table %s has no column %q", name, column)
	}
	for _, r := range tbl.rows {
		id, _ := r[0].(int64)
		if col < len(r) && slices.Contains(ids, id) {
			r[col] = value
		}
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	defer t.store.mu.Unlock()
	if err := t.store.takeFailure("commit", ""); err != nil {
		return err
	}
	t.store.tables = t.view
	for name, tbl := range t.view {
		for _, r := range tbl.rows {
			if id, ok := r[0].(int64); ok {
				t.store.lastID[name] = max(t.store.lastID[name], id)
			}
		}
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (s *Store) nextID(name string) int64 {
	s.lastID[name]++
	return s.lastID[name]
}

// CreateStatement stores a new unused statement in assets or liabilities.
func (s *Store) CreateStatement(_ context.Context, name string, st core.Statement) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok || name == core.TableReports {
		return core.Statement{}, fmt.Errorf("unknown statement table %q", name)
	}
	st.ID = s.nextID(name)
	st.Used = false
	t.rows = append(t.rows, reports.StatementRow(st))
	return st, nil
}

func (s *Store) statements(name string) ([]core.Statement, error) {
	t, ok := s.tables[name]
	if !ok || name == core.TableReports {
		return nil, fmt.Errorf("unknown statement table %q", name)
	}
	return reports.ParseStatements(name, t.rows)
}

func (s *Store) GetStatement(_ context.Context, name string, id int64) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.statements(name)
	if err != nil {
		return core.Statement{}, err
	}
	for _, st := range all {
		if st.ID == id {
			return st, nil
		}
	}
	return core.Statement{}, fmt.Errorf("%s id %d: %w", name, id, core.ErrNotFound)
}

func (s *Store) ListStatements(_ context.Context, name string, userID int64) ([]core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.statements(name)
	if err != nil {
		return nil, err
	}
	out := []core.Statement{}
	for _, st := range all {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) DeleteStatement(_ context.Context, name string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok || name == core.TableReports {
		return fmt.Errorf("unknown statement table %q", name)
	}
	all, err := reports.ParseStatements(name, t.rows)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(all, func(st core.Statement) bool { return st.ID == id })
	if idx < 0 {
		return fmt.Errorf("%s id %d: %w", name, id, core.ErrNotFound)
	}
	if all[idx].Used {
		return fmt.Errorf("%s id %d already reported: %w", name, id, core.ErrConflict)
	}
	t.rows = slices.Delete(t.rows, idx, idx+1)
	return nil
}

func (s *Store) ListReports(_ context.Context, userID int64) ([]core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := reports.ParseReports(s.tables[core.TableReports].rows)
	if err != nil {
		return nil, err
	}
	out := []core.Report{}
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b core.Report) int { return strings.Compare(string(a.Date), string(b.Date)) })
	return out, nil
}

func (s *Store) GetReport(_ context.Context, id int64) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := reports.ParseReports(s.tables[core.TableReports].rows)
	if err != nil {
		return core.Report{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Report{}, fmt.Errorf("report id %d: %w", id, core.ErrNotFound)
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID(core.TableExpenses)
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expenses id %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id })
	if idx < 0 {
		return fmt.Errorf("expenses id %d: %w", id, core.ErrNotFound)
	}
	s.expenses = slices.Delete(s.expenses, idx, idx+1)
	return nil
}

func (s *Store) CreatePattern(_ context.Context, p core.Pattern) (core.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.patterns {
		if existing.UserID == p.UserID && existing.Title == p.Title {
			return core.Pattern{}, fmt.Errorf("patterns title %q: %w", p.Title, core.ErrConflict)
		}
	}
	p.ID = s.nextID(core.TablePatterns)
	s.patterns = append(s.patterns, p)
	return p, nil
}

func (s *Store) GetPattern(_ context.Context, id int64) (core.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Pattern{}, fmt.Errorf("patterns id %d: %w", id, core.ErrNotFound)
}

func (s *Store) GetPatternByTitle(_ context.Context, userID int64, title string) (core.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.UserID == userID && p.Title == title {
			return p, nil
		}
	}
	return core.Pattern{}, fmt.Errorf("patterns title %s: %w", title, core.ErrNotFound)
}

func (s *Store) ListPatterns(_ context.Context, userID int64) ([]core.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Pattern{}
	for _, p := range s.patterns {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, username, apiKey string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return core.User{}, fmt.Errorf("username %q: %w", username, core.ErrConflict)
		}
	}
	u := core.User{
		ID:        s.nextID(core.TableUsers),
		Username:  username,
		APIKey:    apiKey,
		CreatedAt: time.Now().UTC(),
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user id %d: %w", id, core.ErrNotFound)
}

func (s *Store) GetUserByAPIKey(_ context.Context, apiKey string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.APIKey == apiKey {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("api key: %w", core.ErrNotFound)
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User{}, s.users...), nil
}
