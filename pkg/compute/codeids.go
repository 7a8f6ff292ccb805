package compute

import (
	"sort"
)

// CodeIDConfig names sets of code ids. Formula filters and the bank-history
// fallback refer to sets by key so the catalogue stays independent of the
// concrete ids a given chain assigned at store-upload time.
type CodeIDConfig struct {
	// Sets maps a code-id key ("dao", "cw20", ...) to the code ids it
	// covers on this chain.
	Sets map[string][]uint64

	// TrackBankHistoryKeys lists the code-id keys whose contracts have
	// per-denom bank history exported; only those may fall back from the
	// balance snapshot to bank_state_events.
	TrackBankHistoryKeys []string
}

// Resolve unions the code ids behind the given keys. Unknown keys resolve
// to nothing.
func (c CodeIDConfig) Resolve(keys ...string) map[uint64]bool {
	out := map[uint64]bool{}
	for _, key := range keys {
		for _, id := range c.Sets[key] {
			out[id] = true
		}
	}
	return out
}

// KeysForCodeID returns the code-id keys containing the given id, sorted so
// "first matching key" is deterministic.
func (c CodeIDConfig) KeysForCodeID(codeID uint64) []string {
	var keys []string
	for key, ids := range c.Sets {
		for _, id := range ids {
			if id == codeID {
				keys = append(keys, key)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}
