package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chainview-network/chainview/app/query/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
// Formula names may contain slashes (cw20/balance), so the formula segment
// is greedy.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.HandleFunc("/formulas", c.HandleFormulas).Methods("GET")
	r.HandleFunc("/{type}/{address}/{formula:.+}", c.HandleCompute).Methods("GET")

	return r, nil
}

// WithCORS allows browser clients on any origin; the compute surface is
// read-only.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
