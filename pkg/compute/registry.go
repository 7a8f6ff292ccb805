package compute

import (
	"context"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
)

// FormulaType partitions the catalogue by the kind of address a formula
// targets.
type FormulaType string

const (
	FormulaTypeContract  FormulaType = "contract"
	FormulaTypeValidator FormulaType = "validator"
	FormulaTypeAccount   FormulaType = "account"
	FormulaTypeGeneric   FormulaType = "generic"
)

// Valid reports whether t is one of the four formula types.
func (t FormulaType) Valid() bool {
	switch t {
	case FormulaTypeContract, FormulaTypeValidator, FormulaTypeAccount, FormulaTypeGeneric:
		return true
	}
	return false
}

// CodeIDFilter restricts a contract formula to contracts whose code id is
// in the union of the named code-id key sets.
type CodeIDFilter struct {
	CodeIDKeys []string
}

// ComputeFunc is the body of a formula: a pure function over the
// Environment. All I/O goes through env.
type ComputeFunc func(ctx context.Context, env *Env) (any, error)

// Formula is one registered catalogue entry. Dynamic formulas may depend on
// wall-clock time; their results are never cached and they cannot be
// evaluated over a block range.
type Formula struct {
	Type    FormulaType
	Name    string
	Filter  *CodeIDFilter
	Dynamic bool
	Compute ComputeFunc
}

// FormulaInfo is the registry listing projection.
type FormulaInfo struct {
	Type    FormulaType `json:"type"`
	Name    string      `json:"name"`
	Dynamic bool        `json:"dynamic,omitempty"`
}

// Registry resolves (type, name) to formulas. It is safe for concurrent
// registration and lookup; the catalogue is assembled once at start-up and
// is the only compatibility boundary exposed to higher layers.
type Registry struct {
	formulas *xsync.Map[string, *Formula]
}

func NewRegistry() *Registry {
	return &Registry{formulas: xsync.NewMap[string, *Formula]()}
}

func registryKey(t FormulaType, name string) string {
	return string(t) + "/" + name
}

// Register adds a formula to the catalogue. Re-registering a (type, name)
// pair or registering a filter on a non-contract formula is a programming
// error.
func (r *Registry) Register(f *Formula) error {
	if !f.Type.Valid() {
		return fmt.Errorf("register %s: invalid formula type %q", f.Name, f.Type)
	}
	if f.Name == "" || f.Compute == nil {
		return fmt.Errorf("register %s/%s: name and compute function are required", f.Type, f.Name)
	}
	if f.Filter != nil && f.Type != FormulaTypeContract {
		return fmt.Errorf("register %s/%s: code-id filters apply to contract formulas only", f.Type, f.Name)
	}
	if _, loaded := r.formulas.LoadOrStore(registryKey(f.Type, f.Name), f); loaded {
		return fmt.Errorf("register %s/%s: already registered", f.Type, f.Name)
	}
	return nil
}

// MustRegister panics on registration errors; used by the static catalogue.
func (r *Registry) MustRegister(f *Formula) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Lookup resolves a formula by type and name.
func (r *Registry) Lookup(t FormulaType, name string) (*Formula, error) {
	f, ok := r.formulas.Load(registryKey(t, name))
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrFormulaNotFound, t, name)
	}
	return f, nil
}

// List enumerates the catalogue sorted by type then name.
func (r *Registry) List() []FormulaInfo {
	var out []FormulaInfo
	r.formulas.Range(func(_ string, f *Formula) bool {
		out = append(out, FormulaInfo{Type: f.Type, Name: f.Name, Dynamic: f.Dynamic})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}
