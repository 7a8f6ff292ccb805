package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainview-network/chainview/pkg/compute"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondComputeError maps the compute error taxonomy onto HTTP statuses.
// Formula failures pass their message through verbatim; internal failures
// do not leak details.
func respondComputeError(w http.ResponseWriter, err error) {
	var formulaErr *compute.FormulaError
	switch {
	case errors.Is(err, compute.ErrFormulaNotFound), errors.Is(err, compute.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, compute.ErrNotApplicable), errors.Is(err, compute.ErrBadInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &formulaErr):
		respondError(w, http.StatusBadRequest, formulaErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseRangeParam parses "start..end".
func parseRangeParam(v string) (uint64, uint64, error) {
	parts := strings.SplitN(v, "..", 2)
	if len(parts) != 2 {
		return 0, 0, errBadRange
	}
	start, err := parseUintParam(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseUintParam(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

var errBadRange = errors.New("bad range syntax")

func parseUintParam(v string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(v), 10, 64)
}

// parseStepParam parses an optional step; a present but non-positive or
// malformed step is a client error. Responds on failure.
func parseStepParam(w http.ResponseWriter, v string) (uint64, bool) {
	if v == "" {
		return 0, true
	}
	step, err := parseUintParam(v)
	if err != nil || step == 0 {
		respondError(w, http.StatusBadRequest, "step must be a positive integer")
		return 0, false
	}
	return step, true
}
