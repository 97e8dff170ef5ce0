package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Table names shared by the store contract and the HTTP layer.
const (
	TableAssets      = "assets"
	TableLiabilities = "liabilities"
	TableReports     = "reports"
	TableExpenses    = "expenses"
	TablePatterns    = "patterns"
	TableUsers       = "users"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type (
	Date struct {
		time.Time
	}

	// MonthKey identifies a calendar month as "YYYY-MM".
	MonthKey string

	// Statement is a single asset or liability dated to a specific day.
	Statement struct {
		ID          int64  `json:"id"`
		UserID      int64  `json:"user_id"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Value       Money  `json:"value"`
		Used        bool   `json:"used"`
	}

	// Report is a monthly net-worth snapshot derived from statements.
	Report struct {
		ID             int64    `json:"id"`
		UserID         int64    `json:"user_id"`
		Date           MonthKey `json:"date"`
		AssetIDs       []int64  `json:"asset_ids"`
		LiabilityIDs   []int64  `json:"liability_ids"`
		NetWorth       Money    `json:"net_worth"`
		AssetTotal     *Money   `json:"asset_total,omitempty"`
		LiabilityTotal *Money   `json:"liability_total,omitempty"`
	}

	Expense struct {
		ID          int64  `json:"id"`
		UserID      int64  `json:"user_id"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	// Pattern is a named pair of regular expressions that pick the date and
	// the value out of a statement document. Titles are stored lowercased.
	Pattern struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id"`
		Title  string `json:"title"`
		Date   string `json:"date"`
		Value  string `json:"value"`
	}

	User struct {
		ID        int64     `json:"id"`
		Username  string    `json:"username"`
		APIKey    string    `json:"api_key,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonthKey  = errors.New("invalid month key")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyUsername    = errors.New("empty username")
	ErrEmptyTitle       = errors.New("empty title")
)

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if len(s) != len(DateLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the "YYYY-MM" bucket the date belongs to.
func (d Date) MonthKey() MonthKey {
	return MonthKey(d.Format(MonthLayout))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseMonthKey validates a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != len(MonthLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

func (s Statement) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Description) == "" {
		return ErrEmptyDescription
	}
	if len(s.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return s.Value.Validate()
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return e.Amount.Validate()
}

// NormalizeTitle is the stored form of a pattern title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (p Pattern) Validate() error {
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if len(p.Title) > 64 {
		return errors.New("title too long (max 64 characters)")
	}
	for _, f := range []struct{ name, expr string }{{"date", p.Date}, {"value", p.Value}} {
		if _, err := regexp.Compile(f.expr); err != nil {
			return fmt.Errorf("field %s is not a valid pattern", f.name)
		}
	}
	return nil
}

func (u User) Validate() error {
	name := strings.TrimSpace(u.Username)
	if name == "" {
		return ErrEmptyUsername
	}
	if len(name) > 64 {
		return errors.New("username too long (max 64 characters)")
	}
	return nil
}

// JoinIDs renders ids in storage form: every id followed by ';' ("1;2;"),
// or "" when empty.
func JoinIDs(ids []int64) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(';')
	}
	return b.String()
}

// SplitIDs is the inverse of JoinIDs.
func SplitIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id list %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
