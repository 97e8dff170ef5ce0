package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.50, "flag": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	// numbers keep their literal form
	if amount := parser.Get("amount"); amount != "42.50" {
		t.Errorf("Get('amount') = %q, want '42.50'", amount)
	}
	if flag := parser.Get("flag"); flag != "true" {
		t.Errorf("Get('flag') = %q, want 'true'", flag)
	}
	if missing := parser.Get("missing"); missing != "" {
		t.Errorf("Get('missing') = %q, want empty", missing)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"date":`))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	// a second call returns the same error
	if err := parser.Parse(); err == nil {
		t.Fatal("expected cached error")
	}
}

func TestRequestBodyParser_Require(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		fields  []string
		wantErr string
	}{
		{"all present", `{"date":"2024-01-01","value":1,"description":"x"}`, []string{"date", "value", "description"}, ""},
		{"first missing wins", `{"description":"x"}`, []string{"date", "value", "description"}, "field date not provided"},
		{"empty string counts as missing", `{"date":"2024-01-01","value":"  "}`, []string{"date", "value"}, "field value not provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			parser := NewRequestBodyParser(req)
			if err := parser.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			err := parser.Require(tt.fields...)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Require() error = %v", err)
				}
				return
			}
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("Require() error = %v, want MissingFieldError", err)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Require() = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRequestBodyParser_First(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"value":"12,50"}`))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.First("amount", "value"); got != "12,50" {
		t.Errorf("First() = %q, want '12,50'", got)
	}
	if got := parser.First("amount"); got != "" {
		t.Errorf("First() = %q, want empty", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  rent\x00\x07 march\t "); got != "rent march" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
