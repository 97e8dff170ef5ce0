// Package middleware holds the chain helpers shared by the route table.
// The concrete middlewares live in the subpackages.
package middleware

import (
	"encoding/json"
	"net/http"
	"slices"
)

// Func is the usual net/http middleware shape.
type Func func(http.Handler) http.Handler

// Chain wraps h so that mws run in the order given: the first middleware
// sees the request first.
func Chain(h http.Handler, mws ...Func) http.Handler {
	for _, mw := range slices.Backward(mws) {
		h = mw(h)
	}
	return h
}

// Methods rejects requests whose method is not listed with 405.
func Methods(methods ...string) Func {
	allow := ""
	for i, m := range methods {
		if i > 0 {
			allow += ", "
		}
		allow += m
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(methods, r.Method) {
				w.Header().Set("Allow", allow)
				WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: msg})
}
