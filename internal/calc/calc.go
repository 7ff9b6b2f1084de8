// Package calc is the demo arithmetic service the example pipeline builds
// and tests. The system-test job's readiness probe points at its /healthz.
package calc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type resultResponse struct {
	Result int `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the service routes.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/add", handleOp(func(a, b int) int { return a + b }))
	r.Get("/sub", handleOp(func(a, b int) int { return a - b }))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOp parses ?a=&b= and applies op.
func handleOp(op func(a, b int) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, errA := strconv.Atoi(r.URL.Query().Get("a"))
		b, errB := strconv.Atoi(r.URL.Query().Get("b"))
		if errA != nil || errB != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query params a and b must be integers"})
			return
		}
		writeJSON(w, http.StatusOK, resultResponse{Result: op(a, b)})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
