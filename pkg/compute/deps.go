package compute

import (
	"fmt"
	"sort"
	"strings"
)

// Event family namespaces. The namespace is the leading segment of every
// dependent key and routes dependency-change scans to the right table.
const (
	NamespaceWasmState          = "wasm_state"
	NamespaceWasmTransformation = "wasm_transformation"
	NamespaceWasmTx             = "wasm_tx"
	NamespaceBankState          = "bank_state"
	NamespaceBankBalance        = "bank_balance"
	NamespaceStakingSlash       = "staking_slash"
	NamespaceGovProposal        = "gov_proposal"
	NamespaceGovVote            = "gov_vote"
	NamespaceCommunityPool      = "community_pool"
	NamespaceExtraction         = "extraction"
	NamespaceFeegrant           = "feegrant"
)

// FeegrantEitherSide is the opaque sentinel used in the feegrant namespace
// for "any granter" / "any grantee". Only this namespace assigns it meaning;
// it is not a glob.
const FeegrantEitherSide = "*"

// DependentKey identifies a piece of state whose change invalidates a
// computation. Key is the canonical "namespace:subject[:suffix]" string.
// When Prefix is set the key matches any event key it is a prefix of.
type DependentKey struct {
	Key    string `json:"key"`
	Prefix bool   `json:"prefix"`
}

// Namespace returns the leading segment of the dependent key.
func (d DependentKey) Namespace() string {
	if idx := strings.IndexByte(d.Key, ':'); idx >= 0 {
		return d.Key[:idx]
	}
	return d.Key
}

// Rest returns everything after the namespace separator.
func (d DependentKey) Rest() string {
	if idx := strings.IndexByte(d.Key, ':'); idx >= 0 {
		return d.Key[idx+1:]
	}
	return ""
}

// Matches reports whether an event identified by key falls under this
// dependency.
func (d DependentKey) Matches(key string) bool {
	if d.Prefix {
		return strings.HasPrefix(key, d.Key)
	}
	return key == d.Key
}

// Canonical dependent key constructors, one per event family.

func WasmStateDep(contractAddress, hexKey string, prefix bool) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceWasmState, contractAddress, hexKey), Prefix: prefix}
}

// TransformationDep covers transformation names; name may carry the "*"
// glob, and an empty contractAddress means any contract.
func TransformationDep(contractAddress, name string) DependentKey {
	subject := contractAddress
	if subject == "" {
		subject = "*"
	}
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceWasmTransformation, subject, name), Prefix: strings.HasSuffix(name, "*")}
}

func TransformationPrefixDep(contractAddress, namePrefix string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceWasmTransformation, contractAddress, namePrefix), Prefix: true}
}

func WasmTxDep(contractAddress string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:", NamespaceWasmTx, contractAddress), Prefix: true}
}

func BankStateDep(address, denom string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceBankState, address, denom)}
}

func BankStateAllDep(address string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:", NamespaceBankState, address), Prefix: true}
}

func BankBalanceDep(address string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s", NamespaceBankBalance, address)}
}

func StakingSlashDep(operatorAddress string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:", NamespaceStakingSlash, operatorAddress), Prefix: true}
}

func GovProposalDep(proposalID string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s", NamespaceGovProposal, proposalID)}
}

func GovProposalAllDep() DependentKey {
	return DependentKey{Key: NamespaceGovProposal + ":", Prefix: true}
}

func GovVoteDep(proposalID, voter string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceGovVote, proposalID, voter)}
}

func GovVoteAllDep(proposalID string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:", NamespaceGovVote, proposalID), Prefix: true}
}

func CommunityPoolDep() DependentKey {
	return DependentKey{Key: NamespaceCommunityPool}
}

func ExtractionDep(address, name string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceExtraction, address, name)}
}

// FeegrantDep builds a fee-grant dependency; either side may be the
// FeegrantEitherSide sentinel.
func FeegrantDep(granter, grantee string) DependentKey {
	return DependentKey{Key: fmt.Sprintf("%s:%s:%s", NamespaceFeegrant, granter, grantee)}
}

// Recorder collects the dependent keys a single evaluation touches.
// Recording happens before the underlying fetch so a miss still produces a
// dependency. Duplicates are tolerated and removed on Snapshot.
// A Recorder belongs to exactly one evaluation and is not safe for
// concurrent use except through Env, which serialises prefetch workers.
type Recorder struct {
	keys []DependentKey
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a dependency.
func (r *Recorder) Record(key DependentKey) {
	r.keys = append(r.keys, key)
}

// Len returns the raw (non-deduplicated) count.
func (r *Recorder) Len() int {
	return len(r.keys)
}

// Snapshot returns the deduplicated dependency set, split into event
// dependencies and transformation dependencies, each sorted by key for
// deterministic persistence.
func (r *Recorder) Snapshot() (events, transformations []DependentKey) {
	seen := make(map[DependentKey]bool, len(r.keys))
	for _, k := range r.keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if k.Namespace() == NamespaceWasmTransformation {
			transformations = append(transformations, k)
		} else {
			events = append(events, k)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	sort.Slice(transformations, func(i, j int) bool { return transformations[i].Key < transformations[j].Key })
	return events, transformations
}

// All returns the deduplicated full set (events then transformations).
func (r *Recorder) All() []DependentKey {
	events, transformations := r.Snapshot()
	return append(events, transformations...)
}
