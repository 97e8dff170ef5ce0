package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.005", true}, // no rounding on parse
		{" 2.50 ", "2.5", true},
		{"-1", "-1", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"2234.56", "2234.56"},
		{"1.005", "1.01"},
		{"1.015", "1.02"},
		{"-1.005", "-1.01"},
		{"-1205.09", "-1205.09"},
		{"0.004", "0"},
	}
	for _, tc := range cases {
		got := MustMoney(tc.in).Round2()
		if !got.Equal(MustMoney(tc.out)) {
			t.Fatalf("Round2(%s) = %s, want %s", tc.in, got, tc.out)
		}
	}
}

func TestSumIsExact(t *testing.T) {
	// 0.1 + 0.2 is not 0.3 in binary floating point.
	got := Sum(MustMoney("0.1"), MustMoney("0.2"))
	if !got.Equal(MustMoney("0.3")) {
		t.Fatalf("Sum = %s, want 0.3", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		V Money `json:"v"`
	}{MustMoney("1234.56")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"v":1234.56}` {
		t.Fatalf("marshal = %s", b)
	}

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 10.5, "b": "7,25"}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.A.String() != "10.5" || in.B.String() != "7.25" {
		t.Fatalf("unmarshal = %s %s", in.A, in.B)
	}
	if err := json.Unmarshal([]byte(`{"a": "x"}`), &in); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MustMoney("0").Validate(); err != nil {
		t.Fatalf("zero should be valid, got %v", err)
	}
	if err := MustMoney("-0.01").Validate(); err == nil {
		t.Fatal("expected error for negative amount")
	}
}
