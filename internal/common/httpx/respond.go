package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem writes a simplified RFC7807 problem+json error body.
func WriteProblem(w http.ResponseWriter, code int, typ, detail string) {
	WriteJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// AtoiDefault parses s, falling back to d on empty or invalid input.
func AtoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
