package reports

import (
	"errors"
	"fmt"

	"financify/internal/core"

	"github.com/shopspring/decimal"
)

var errMissing = errors.New("value missing")

// ParseStatements decodes rows of an assets or liabilities table.
// The first malformed row aborts the whole parse.
func ParseStatements(table string, rows []Row) ([]core.Statement, error) {
	out := make([]core.Statement, 0, len(rows))
	for i, row := range rows {
		s, err := parseStatement(table, i, row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseStatement(table string, idx int, row Row) (core.Statement, error) {
	var s core.Statement
	fail := func(col string, err error) (core.Statement, error) {
		return core.Statement{}, &core.ParseError{Table: table, Row: idx, Column: col, Err: err}
	}

	if n := len(row); n != len(StatementColumns) && n != len(StatementColumns)-1 {
		return fail("*", fmt.Errorf("expected %d or %d columns, got %d", len(StatementColumns)-1, len(StatementColumns), n))
	}

	var err error
	if s.ID, err = asInt64(row[0]); err != nil {
		return fail("id", err)
	}
	raw, err := asString(row[1])
	if err != nil {
		return fail("date", err)
	}
	if s.Date, err = core.ParseDate(raw); err != nil {
		return fail("date", err)
	}
	if s.Description, err = asString(row[2]); err != nil {
		return fail("description", err)
	}
	if s.Value, err = asMoney(row[3]); err != nil {
		return fail("value", err)
	}
	if s.Used, err = asBool(row[4]); err != nil {
		return fail("used", err)
	}
	if len(row) == len(StatementColumns) {
		if s.UserID, err = asInt64(row[5]); err != nil {
			return fail("user_id", err)
		}
	}
	return s, nil
}

// ParseReports decodes rows of the reports table.
func ParseReports(rows []Row) ([]core.Report, error) {
	out := make([]core.Report, 0, len(rows))
	for i, row := range rows {
		r, err := parseReport(i, row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseReport(idx int, row Row) (core.Report, error) {
	var r core.Report
	fail := func(col string, err error) (core.Report, error) {
		return core.Report{}, &core.ParseError{Table: core.TableReports, Row: idx, Column: col, Err: err}
	}

	if n := len(row); n != len(ReportColumns) && n != len(ReportColumns)-1 {
		return fail("*", fmt.Errorf("expected %d or %d columns, got %d", len(ReportColumns)-1, len(ReportColumns), n))
	}

	var err error
	if r.ID, err = asInt64(row[0]); err != nil {
		return fail("id", err)
	}
	raw, err := asString(row[1])
	if err != nil {
		return fail("date", err)
	}
	if r.Date, err = core.ParseMonthKey(raw); err != nil {
		return fail("date", err)
	}
	if raw, err = asString(row[2]); err != nil {
		return fail("asset_ids", err)
	}
	if r.AssetIDs, err = core.SplitIDs(raw); err != nil {
		return fail("asset_ids", err)
	}
	if raw, err = asString(row[3]); err != nil {
		return fail("liability_ids", err)
	}
	if r.LiabilityIDs, err = core.SplitIDs(raw); err != nil {
		return fail("liability_ids", err)
	}
	if r.NetWorth, err = asMoney(row[4]); err != nil {
		return fail("net_worth", err)
	}
	if len(row) == len(ReportColumns) {
		if r.UserID, err = asInt64(row[5]); err != nil {
			return fail("user_id", err)
		}
	}
	return r, nil
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, errMissing
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", errMissing
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", fmt.Errorf("expected text, got %T", v)
	}
}

func asMoney(v any) (core.Money, error) {
	switch t := v.(type) {
	case nil:
		return core.Money{}, errMissing
	case core.Money:
		return t, nil
	case decimal.Decimal:
		return core.NewMoney(t), nil
	case int64:
		return core.NewMoney(decimal.NewFromInt(t)), nil
	case int:
		return core.NewMoney(decimal.NewFromInt(int64(t))), nil
	case float64:
		return core.NewMoney(decimal.NewFromFloat(t)), nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return core.Money{}, fmt.Errorf("expected number, got %q", t)
		}
		return core.NewMoney(d), nil
	case []byte:
		return asMoney(string(t))
	default:
		return core.Money{}, fmt.Errorf("expected number, got %T", v)
	}
}

// asBool accepts the flag encodings a store may return: bool or an integer
// where non-zero is true.
func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, errMissing
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return false, fmt.Errorf("expected flag, got %T", v)
	}
}
