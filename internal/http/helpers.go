package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"financify/internal/core"
)

// parseID reads the {id} path value. Non-numeric or non-positive ids yield
// the "<table> id invalid" message.
func parseID(r *http.Request, table string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s id invalid", table)
	}
	return id, nil
}

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (core.Date, error) {
	d, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Date{}, core.Invalid(err)
	}
	return d, nil
}

// parseAmount parses a non-negative decimal amount.
func parseAmount(s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, core.Invalid(err)
	}
	return m, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
