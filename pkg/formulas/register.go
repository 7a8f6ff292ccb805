// Package formulas is the compile-time formula catalogue. Formulas are pure
// functions over the compute Environment; registering them here is the only
// compatibility boundary exposed to the query surface.
package formulas

import (
	"strconv"

	"github.com/chainview-network/chainview/pkg/compute"
)

// NewRegistry builds a registry with the full catalogue registered.
func NewRegistry() *compute.Registry {
	reg := compute.NewRegistry()
	RegisterAll(reg)
	return reg
}

// RegisterAll registers every catalogue formula.
func RegisterAll(reg *compute.Registry) {
	registerContract(reg)
	registerCw20(reg)
	registerDao(reg)
	registerAccount(reg)
	registerValidator(reg)
	registerGeneric(reg)
}

// uintArg parses an optional numeric argument, falling back to def when
// absent.
func uintArg(env *compute.Env, name string, def uint64) (uint64, error) {
	v, ok := env.Arg(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// boolArg parses an optional boolean argument.
func boolArg(env *compute.Env, name string, def bool) (bool, error) {
	v, ok := env.Arg(name)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, err
	}
	return b, nil
}
