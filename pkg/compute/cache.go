package compute

import (
	"strings"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// evalCache is the two-level memo that lives for exactly one evaluation.
// Entries are keyed by dependent key; a prefix entry holds every row under
// the prefix so later point reads inside it resolve from memory. Durable
// reuse across evaluations is the computation cache's job, never this one.
type evalCache struct {
	events          map[string]eventsEntry
	transformations map[string]transformationsEntry
	contracts       map[string]contractEntry
}

type eventsEntry struct {
	prefix bool
	rows   []chainmodels.WasmStateEvent
}

type transformationsEntry struct {
	prefix bool
	rows   []chainmodels.WasmStateEventTransformation
}

type contractEntry struct {
	contract *chainmodels.Contract // nil = tried, absent
}

func newEvalCache() *evalCache {
	return &evalCache{
		events:          map[string]eventsEntry{},
		transformations: map[string]transformationsEntry{},
		contracts:       map[string]contractEntry{},
	}
}

// lookupEvent resolves a point read: an exact entry wins, otherwise any
// prefix entry containing the key answers it (zero matching rows = tried
// and absent).
func (c *evalCache) lookupEvent(depKey string) (*chainmodels.WasmStateEvent, bool) {
	if e, ok := c.events[depKey]; ok && !e.prefix {
		if len(e.rows) == 0 {
			return nil, true
		}
		row := e.rows[0]
		return &row, true
	}
	for pk, e := range c.events {
		if !e.prefix || !strings.HasPrefix(depKey, pk) {
			continue
		}
		for i := range e.rows {
			if eventDepKey(&e.rows[i]) == depKey {
				row := e.rows[i]
				return &row, true
			}
		}
		return nil, true
	}
	return nil, false
}

func (c *evalCache) storeEvent(depKey string, row *chainmodels.WasmStateEvent) {
	var rows []chainmodels.WasmStateEvent
	if row != nil {
		rows = []chainmodels.WasmStateEvent{*row}
	}
	c.events[depKey] = eventsEntry{rows: rows}
}

// lookupEventPrefix resolves a map read from an identical prior prefix
// fetch, or from a broader prefix entry that contains this one.
func (c *evalCache) lookupEventPrefix(depKey string) ([]chainmodels.WasmStateEvent, bool) {
	if e, ok := c.events[depKey]; ok && e.prefix {
		return e.rows, true
	}
	for pk, e := range c.events {
		if !e.prefix || pk == depKey || !strings.HasPrefix(depKey, pk) {
			continue
		}
		var rows []chainmodels.WasmStateEvent
		for i := range e.rows {
			if strings.HasPrefix(eventDepKey(&e.rows[i]), depKey) {
				rows = append(rows, e.rows[i])
			}
		}
		return rows, true
	}
	return nil, false
}

func (c *evalCache) storeEventPrefix(depKey string, rows []chainmodels.WasmStateEvent) {
	c.events[depKey] = eventsEntry{prefix: true, rows: rows}
}

func (c *evalCache) lookupTransformation(depKey string) ([]chainmodels.WasmStateEventTransformation, bool) {
	if e, ok := c.transformations[depKey]; ok {
		return e.rows, true
	}
	return nil, false
}

func (c *evalCache) storeTransformation(depKey string, prefix bool, rows []chainmodels.WasmStateEventTransformation) {
	c.transformations[depKey] = transformationsEntry{prefix: prefix, rows: rows}
}

func (c *evalCache) lookupContract(address string) (*chainmodels.Contract, bool) {
	if e, ok := c.contracts[address]; ok {
		return e.contract, true
	}
	return nil, false
}

func (c *evalCache) storeContract(address string, contract *chainmodels.Contract) {
	c.contracts[address] = contractEntry{contract: contract}
}

func eventDepKey(row *chainmodels.WasmStateEvent) string {
	return WasmStateDep(row.ContractAddress, row.Key, false).Key
}
