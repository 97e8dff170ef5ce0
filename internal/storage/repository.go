package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financify/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Transactions take the write lock on BEGIN so
// concurrent report runs serialize instead of failing on upgrade.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %v: %w", what, id, err)
}

// CreateUser stores a new user. A taken username or key yields core.ErrConflict.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, apiKey string) (core.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, api_key, created_at) VALUES (?, ?, ?)`,
		username, apiKey, now.Format(time.RFC3339))
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("username %q: %w", username, core.ErrConflict)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "username", username)

	return core.User{ID: id, Username: username, APIKey: apiKey, CreatedAt: now}, nil
}

const userColumns = `id, username, api_key, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.APIKey, &created); err != nil {
		return core.User{}, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return core.User{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	u.CreatedAt = t
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByAPIKey(ctx context.Context, apiKey string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE api_key = ?`, apiKey))
	if err != nil {
		return core.User{}, notFound(err, "api key", "")
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []core.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, date, description, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.Date.String(), e.Description, e.Amount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"date", e.Date.String(),
		"amount", e.Amount.String())

	return e, nil
}

const expenseColumns = `id, user_id, date, description, amount`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e            core.Expense
		date, amount string
	)
	if err := row.Scan(&e.ID, &e.UserID, &date, &e.Description, &amount); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, err
	}
	if e.Amount, err = core.ParseMoney(amount); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return core.Expense{}, notFound(err, "expenses id", id)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, core.TableExpenses, id)
}

// CreatePattern stores a pattern. A title the owner already uses yields
// core.ErrConflict.
func (r *SQLiteRepository) CreatePattern(ctx context.Context, p core.Pattern) (core.Pattern, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO patterns (user_id, title, date, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.Title, p.Date, p.Value, time.Now().UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		return core.Pattern{}, fmt.Errorf("patterns title %q: %w", p.Title, core.ErrConflict)
	}
	if err != nil {
		return core.Pattern{}, fmt.Errorf("create pattern: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.Pattern{}, fmt.Errorf("create pattern: %w", err)
	}

	slog.InfoContext(ctx, "Pattern saved to SQLite", "id", p.ID, "user_id", p.UserID, "title", p.Title)
	return p, nil
}

const patternColumns = `id, user_id, title, date, value`

func scanPattern(row interface{ Scan(...any) error }) (core.Pattern, error) {
	var p core.Pattern
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Date, &p.Value)
	return p, err
}

func (r *SQLiteRepository) GetPattern(ctx context.Context, id int64) (core.Pattern, error) {
	p, err := scanPattern(r.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id))
	if err != nil {
		return core.Pattern{}, notFound(err, "patterns id", id)
	}
	return p, nil
}

func (r *SQLiteRepository) GetPatternByTitle(ctx context.Context, userID int64, title string) (core.Pattern, error) {
	p, err := scanPattern(r.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE user_id = ? AND title = ?`, userID, title))
	if err != nil {
		return core.Pattern{}, notFound(err, "patterns title", title)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPatterns(ctx context.Context, userID int64) ([]core.Pattern, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	patterns := []core.Pattern{}
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s id %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s id %d: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s id %d: %w", table, id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Row deleted", "table", table, "id", id)
	return nil
}
