package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2021-01-05", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2021-1-5", false},
		{"2021/01/05", false},
		{"2021-01-05T00:00:00Z", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
			}
		}
	}
}

func TestDateMonthKey(t *testing.T) {
	if got := NewDate(2021, 1, 20).MonthKey(); got != "2021-01" {
		t.Fatalf("MonthKey = %q", got)
	}
	if got := NewDate(1999, 12, 31).MonthKey(); got != "1999-12" {
		t.Fatalf("MonthKey = %q", got)
	}
}

func TestParseMonthKey(t *testing.T) {
	for _, s := range []string{"2021-01", "1999-12"} {
		if _, err := ParseMonthKey(s); err != nil {
			t.Fatalf("%q expected ok, got %v", s, err)
		}
	}
	for _, s := range []string{"2021-1", "2021-13", "2021-01-01", ""} {
		if _, err := ParseMonthKey(s); err == nil {
			t.Fatalf("%q expected error", s)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2021, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2021-02-01"` {
		t.Fatalf("marshal = %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2021-02-01"`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unmarshal = %v", d)
	}
	if err := json.Unmarshal([]byte(`"01/02/2021"`), &d); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestJoinSplitIDs(t *testing.T) {
	cases := []struct {
		ids []int64
		s   string
	}{
		{nil, ""},
		{[]int64{5}, "5;"},
		{[]int64{1, 2}, "1;2;"},
	}
	for _, tc := range cases {
		if got := JoinIDs(tc.ids); got != tc.s {
			t.Fatalf("JoinIDs(%v) = %q, want %q", tc.ids, got, tc.s)
		}
		got, err := SplitIDs(tc.s)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, tc.ids) {
			t.Fatalf("SplitIDs(%q) = %v, want %v", tc.s, got, tc.ids)
		}
	}
	if _, err := SplitIDs("1;x;"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestStatementValidate(t *testing.T) {
	good := Statement{Date: NewDate(2025, 1, 1), Description: "bank", Value: MustMoney("10")}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Statement{
		{Date: Date{}, Description: "a", Value: MustMoney("1")},
		{Date: NewDate(2025, 1, 1), Description: " ", Value: MustMoney("1")},
		{Date: NewDate(2025, 1, 1), Description: "a", Value: MustMoney("-1")},
	}
	for i, s := range bads {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{Username: "ana"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (User{Username: "  "}).Validate(); !errors.Is(err, ErrEmptyUsername) {
		t.Fatalf("expected ErrEmptyUsername, got %v", err)
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	err := error(&ParseError{Table: TableAssets, Row: 3, Column: "date", Err: ErrInvalidDate})
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatal("ParseError should unwrap to its cause")
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Row != 3 {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestValidationError(t *testing.T) {
	if Invalid(nil) != nil {
		t.Fatal("Invalid(nil) should be nil")
	}
	err := Invalid(ErrEmptyDescription)
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("ValidationError should match both sentinels: %v", err)
	}
	if err.Error() != ErrEmptyDescription.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
}
