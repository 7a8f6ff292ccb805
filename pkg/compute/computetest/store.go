// Package computetest provides an in-memory compute.Store for exercising
// the evaluators without a ClickHouse instance. It mirrors the store
// contract: most-recent-at-or-below-height reads, tombstone shadowing,
// byte-prefix scans and dependency-change queries.
package computetest

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chainview-network/chainview/pkg/compute"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// Store is an in-memory compute.Store. Zero value is usable. All methods
// are safe for concurrent use. Queries counts store round-trips so tests
// can assert memo behaviour.
type Store struct {
	mu sync.Mutex

	WasmState       []chainmodels.WasmStateEvent
	Transformations []chainmodels.WasmStateEventTransformation
	Txs             []chainmodels.WasmTxEvent
	BankState       []chainmodels.BankStateEvent
	BankBalances    map[string]chainmodels.BankBalance
	Slashes         []chainmodels.StakingSlashEvent
	Proposals       []chainmodels.GovProposal
	Votes           []chainmodels.GovProposalVote
	CommunityPool   []chainmodels.CommunityPoolStateEvent
	Extractions     []chainmodels.Extraction
	Feegrants       []chainmodels.FeegrantAllowance
	Contracts       map[string]chainmodels.Contract
	Validators      map[string]chainmodels.Validator
	Blocks          []chainmodels.Block
	State           *chainmodels.State

	computations map[string]chainmodels.Computation

	queries int
}

var _ compute.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		BankBalances: map[string]chainmodels.BankBalance{},
		Contracts:    map[string]chainmodels.Contract{},
		Validators:   map[string]chainmodels.Validator{},
		computations: map[string]chainmodels.Computation{},
	}
}

// Queries returns the number of store round-trips since the last Reset.
func (s *Store) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// ResetQueries zeroes the round-trip counter.
func (s *Store) ResetQueries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = 0
}

func (s *Store) count() {
	s.mu.Lock()
	s.queries++
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Wasm state

func (s *Store) WasmStateLatest(_ context.Context, contractAddress, hexKey string, height uint64) (*chainmodels.WasmStateEvent, error) {
	s.count()
	var best *chainmodels.WasmStateEvent
	for i := range s.WasmState {
		row := &s.WasmState[i]
		if row.ContractAddress != contractAddress || row.Key != hexKey || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) WasmStateLatestByPrefix(_ context.Context, contractAddress, hexKeyPrefix string, height uint64) ([]chainmodels.WasmStateEvent, error) {
	s.count()
	latest := map[string]chainmodels.WasmStateEvent{}
	for _, row := range s.WasmState {
		if row.ContractAddress != contractAddress || !strings.HasPrefix(row.Key, hexKeyPrefix) || row.BlockHeight > height {
			continue
		}
		if prev, ok := latest[row.Key]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[row.Key] = row
		}
	}
	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]chainmodels.WasmStateEvent, 0, len(keys))
	for _, k := range keys {
		out = append(out, latest[k])
	}
	return out, nil
}

func (s *Store) WasmStateFirstSet(_ context.Context, contractAddress, hexKey string, height uint64, valueFilters []string) (*chainmodels.WasmStateEvent, error) {
	s.count()
	var best *chainmodels.WasmStateEvent
	for i := range s.WasmState {
		row := &s.WasmState[i]
		if row.ContractAddress != contractAddress || row.Key != hexKey || row.BlockHeight > height || row.Deleted {
			continue
		}
		if len(valueFilters) > 0 && !contains(valueFilters, row.Value) {
			continue
		}
		if best == nil || row.BlockHeight < best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// ---------------------------------------------------------------------------
// Transformations

func (s *Store) TransformationLatest(_ context.Context, contractAddress, name string, height uint64) (*chainmodels.WasmStateEventTransformation, error) {
	s.count()
	var best *chainmodels.WasmStateEventTransformation
	for i := range s.Transformations {
		row := &s.Transformations[i]
		if row.ContractAddress != contractAddress || row.Name != name || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) TransformationsLatestByName(_ context.Context, contractAddresses []string, namePattern string, height uint64, limit uint64) ([]chainmodels.WasmStateEventTransformation, error) {
	s.count()
	type pairKey struct{ addr, name string }
	latest := map[pairKey]chainmodels.WasmStateEventTransformation{}
	for _, row := range s.Transformations {
		if len(contractAddresses) > 0 && !contains(contractAddresses, row.ContractAddress) {
			continue
		}
		if !likeMatch(namePattern, row.Name) || row.BlockHeight > height {
			continue
		}
		k := pairKey{row.ContractAddress, row.Name}
		if prev, ok := latest[k]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[k] = row
		}
	}
	out := make([]chainmodels.WasmStateEventTransformation, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContractAddress != out[j].ContractAddress {
			return out[i].ContractAddress < out[j].ContractAddress
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransformationsLatestByPrefix(ctx context.Context, contractAddress, namePrefix string, height uint64) ([]chainmodels.WasmStateEventTransformation, error) {
	return s.TransformationsLatestByName(ctx, []string{contractAddress}, likeEscape(namePrefix)+"%", height, 0)
}

func (s *Store) TransformationFirst(_ context.Context, contractAddress, namePattern string, height uint64) (*chainmodels.WasmStateEventTransformation, error) {
	s.count()
	var best *chainmodels.WasmStateEventTransformation
	for i := range s.Transformations {
		row := &s.Transformations[i]
		if row.ContractAddress != contractAddress || !likeMatch(namePattern, row.Name) || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight < best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// ---------------------------------------------------------------------------
// Registries

func (s *Store) GetContract(_ context.Context, address string) (*chainmodels.Contract, error) {
	s.count()
	if contract, ok := s.Contracts[address]; ok {
		return &contract, nil
	}
	return nil, nil
}

func (s *Store) GetValidator(_ context.Context, operatorAddress string) (*chainmodels.Validator, error) {
	s.count()
	if validator, ok := s.Validators[operatorAddress]; ok {
		return &validator, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Transactions

func (s *Store) WasmTxEvents(_ context.Context, contractAddress string, height uint64, filter *compute.TxEventFilter) ([]chainmodels.WasmTxEvent, error) {
	s.count()
	out := make([]chainmodels.WasmTxEvent, 0)
	for _, row := range s.Txs {
		if row.ContractAddress != contractAddress || row.BlockHeight > height {
			continue
		}
		if filter != nil {
			if filter.Action != "" && row.Action != filter.Action {
				continue
			}
			if filter.Sender != "" && row.Sender != filter.Sender {
				continue
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			return out[i].BlockHeight > out[j].BlockHeight
		}
		return out[i].TxIndex > out[j].TxIndex
	})
	if filter != nil && filter.Limit > 0 {
		start := min(filter.Offset, uint64(len(out)))
		end := min(start+filter.Limit, uint64(len(out)))
		out = out[start:end]
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Bank

func (s *Store) BankBalanceSnapshot(_ context.Context, address string, height uint64) (*chainmodels.BankBalance, error) {
	s.count()
	if snap, ok := s.BankBalances[address]; ok && snap.BlockHeight <= height {
		return &snap, nil
	}
	return nil, nil
}

func (s *Store) BankStateLatest(_ context.Context, address, denom string, height uint64) (*chainmodels.BankStateEvent, error) {
	s.count()
	var best *chainmodels.BankStateEvent
	for i := range s.BankState {
		row := &s.BankState[i]
		if row.Address != address || row.Denom != denom || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) BankStateLatestAll(_ context.Context, address string, height uint64) ([]chainmodels.BankStateEvent, error) {
	s.count()
	latest := map[string]chainmodels.BankStateEvent{}
	for _, row := range s.BankState {
		if row.Address != address || row.BlockHeight > height {
			continue
		}
		if prev, ok := latest[row.Denom]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[row.Denom] = row
		}
	}
	denoms := make([]string, 0, len(latest))
	for d := range latest {
		denoms = append(denoms, d)
	}
	sort.Strings(denoms)
	out := make([]chainmodels.BankStateEvent, 0, len(denoms))
	for _, d := range denoms {
		out = append(out, latest[d])
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Staking

func (s *Store) SlashEvents(_ context.Context, operatorAddress string, height uint64) ([]chainmodels.StakingSlashEvent, error) {
	s.count()
	out := make([]chainmodels.StakingSlashEvent, 0)
	for _, row := range s.Slashes {
		if row.ValidatorOperatorAddress == operatorAddress && row.RegisteredBlockHeight <= height {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredBlockHeight > out[j].RegisteredBlockHeight })
	return out, nil
}

// ---------------------------------------------------------------------------
// Governance

func (s *Store) ProposalLatest(_ context.Context, proposalID string, height uint64) (*chainmodels.GovProposal, error) {
	s.count()
	var best *chainmodels.GovProposal
	for i := range s.Proposals {
		row := &s.Proposals[i]
		if row.ProposalID != proposalID || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) ProposalsLatest(_ context.Context, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposal, error) {
	s.count()
	latest := map[string]chainmodels.GovProposal{}
	for _, row := range s.Proposals {
		if row.BlockHeight > height {
			continue
		}
		if prev, ok := latest[row.ProposalID]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[row.ProposalID] = row
		}
	}
	out := make([]chainmodels.GovProposal, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		less := numericLess(out[i].ProposalID, out[j].ProposalID)
		if ascending {
			return less
		}
		return !less
	})
	return page(out, limit, offset), nil
}

func (s *Store) ProposalCount(_ context.Context, height uint64) (uint64, error) {
	s.count()
	seen := map[string]bool{}
	for _, row := range s.Proposals {
		if row.BlockHeight <= height {
			seen[row.ProposalID] = true
		}
	}
	return uint64(len(seen)), nil
}

func (s *Store) ProposalVoteLatest(_ context.Context, proposalID, voter string, height uint64) (*chainmodels.GovProposalVote, error) {
	s.count()
	var best *chainmodels.GovProposalVote
	for i := range s.Votes {
		row := &s.Votes[i]
		if row.ProposalID != proposalID || row.VoterAddress != voter || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) ProposalVotesLatest(_ context.Context, proposalID string, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposalVote, error) {
	s.count()
	latest := map[string]chainmodels.GovProposalVote{}
	for _, row := range s.Votes {
		if row.ProposalID != proposalID || row.BlockHeight > height {
			continue
		}
		if prev, ok := latest[row.VoterAddress]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[row.VoterAddress] = row
		}
	}
	out := make([]chainmodels.GovProposalVote, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			if ascending {
				return out[i].BlockHeight < out[j].BlockHeight
			}
			return out[i].BlockHeight > out[j].BlockHeight
		}
		return out[i].VoterAddress < out[j].VoterAddress
	})
	return page(out, limit, offset), nil
}

func (s *Store) ProposalVoteCount(_ context.Context, proposalID string, height uint64) (uint64, error) {
	s.count()
	seen := map[string]bool{}
	for _, row := range s.Votes {
		if row.ProposalID == proposalID && row.BlockHeight <= height {
			seen[row.VoterAddress] = true
		}
	}
	return uint64(len(seen)), nil
}

// ---------------------------------------------------------------------------
// Distribution, extractions, fee grants

func (s *Store) CommunityPoolLatest(_ context.Context, height uint64) (*chainmodels.CommunityPoolStateEvent, error) {
	s.count()
	var best *chainmodels.CommunityPoolStateEvent
	for i := range s.CommunityPool {
		row := &s.CommunityPool[i]
		if row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) ExtractionLatest(_ context.Context, address, name string, height uint64) (*chainmodels.Extraction, error) {
	s.count()
	var best *chainmodels.Extraction
	for i := range s.Extractions {
		row := &s.Extractions[i]
		if row.Address != address || row.Name != name || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) FeegrantAllowanceLatest(_ context.Context, granter, grantee string, height uint64) (*chainmodels.FeegrantAllowance, error) {
	s.count()
	var best *chainmodels.FeegrantAllowance
	for i := range s.Feegrants {
		row := &s.Feegrants[i]
		if row.Granter != granter || row.Grantee != grantee || row.BlockHeight > height {
			continue
		}
		if best == nil || row.BlockHeight > best.BlockHeight {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) FeegrantAllowancesLatest(_ context.Context, address string, side compute.GrantSide, height uint64) ([]chainmodels.FeegrantAllowance, error) {
	s.count()
	type pairKey struct{ granter, grantee string }
	latest := map[pairKey]chainmodels.FeegrantAllowance{}
	for _, row := range s.Feegrants {
		if row.BlockHeight > height {
			continue
		}
		if side == compute.GrantSideGranted && row.Granter != address {
			continue
		}
		if side == compute.GrantSideReceived && row.Grantee != address {
			continue
		}
		k := pairKey{row.Granter, row.Grantee}
		if prev, ok := latest[k]; !ok || row.BlockHeight > prev.BlockHeight {
			latest[k] = row
		}
	}
	out := make([]chainmodels.FeegrantAllowance, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Granter != out[j].Granter {
			return out[i].Granter < out[j].Granter
		}
		return out[i].Grantee < out[j].Grantee
	})
	return out, nil
}

func (s *Store) RawQuery(_ context.Context, _ string, _ ...any) ([]map[string]any, error) {
	s.count()
	return nil, nil
}

// ---------------------------------------------------------------------------
// Dependency scans

func (s *Store) AnyDependencyChange(_ context.Context, deps []compute.DependentKey, afterHeight, uptoHeight uint64) (bool, error) {
	s.count()
	for _, h := range s.dependencyHeights(deps) {
		if h > afterHeight && h <= uptoHeight {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) NextDependencyChange(_ context.Context, deps []compute.DependentKey, afterHeight uint64) (uint64, bool, error) {
	s.count()
	var best uint64
	found := false
	for _, h := range s.dependencyHeights(deps) {
		if h > afterHeight && (!found || h < best) {
			best = h
			found = true
		}
	}
	return best, found, nil
}

// dependencyHeights enumerates the heights of every row matching any
// dependency.
func (s *Store) dependencyHeights(deps []compute.DependentKey) []uint64 {
	var heights []uint64
	for _, dep := range deps {
		rest := dep.Rest()
		switch dep.Namespace() {
		case compute.NamespaceWasmState:
			addr, key, _ := strings.Cut(rest, ":")
			for _, row := range s.WasmState {
				if row.ContractAddress != addr {
					continue
				}
				if dep.Prefix && strings.HasPrefix(row.Key, key) || !dep.Prefix && row.Key == key {
					heights = append(heights, row.BlockHeight)
				}
			}
		case compute.NamespaceWasmTransformation:
			addr, name, _ := strings.Cut(rest, ":")
			for _, row := range s.Transformations {
				if addr != "*" && row.ContractAddress != addr {
					continue
				}
				match := false
				switch {
				case strings.Contains(name, "*"):
					match = globMatch(name, row.Name)
				case dep.Prefix:
					match = strings.HasPrefix(row.Name, name)
				default:
					match = row.Name == name
				}
				if match {
					heights = append(heights, row.BlockHeight)
				}
			}
		case compute.NamespaceWasmTx:
			addr := strings.TrimSuffix(rest, ":")
			for _, row := range s.Txs {
				if row.ContractAddress == addr {
					heights = append(heights, row.BlockHeight)
				}
			}
		case compute.NamespaceBankState:
			if dep.Prefix {
				addr := strings.TrimSuffix(rest, ":")
				for _, row := range s.BankState {
					if row.Address == addr {
						heights = append(heights, row.BlockHeight)
					}
				}
			} else {
				addr, denom, _ := strings.Cut(rest, ":")
				for _, row := range s.BankState {
					if row.Address == addr && row.Denom == denom {
						heights = append(heights, row.BlockHeight)
					}
				}
			}
		case compute.NamespaceBankBalance:
			if snap, ok := s.BankBalances[rest]; ok {
				heights = append(heights, snap.BlockHeight)
			}
		case compute.NamespaceStakingSlash:
			addr := strings.TrimSuffix(rest, ":")
			for _, row := range s.Slashes {
				if row.ValidatorOperatorAddress == addr {
					heights = append(heights, row.RegisteredBlockHeight)
				}
			}
		case compute.NamespaceGovProposal:
			id := strings.TrimSuffix(rest, ":")
			for _, row := range s.Proposals {
				if id == "" || row.ProposalID == id {
					heights = append(heights, row.BlockHeight)
				}
			}
		case compute.NamespaceGovVote:
			if dep.Prefix {
				id := strings.TrimSuffix(rest, ":")
				for _, row := range s.Votes {
					if id == "" || row.ProposalID == id {
						heights = append(heights, row.BlockHeight)
					}
				}
			} else {
				id, voter, _ := strings.Cut(rest, ":")
				for _, row := range s.Votes {
					if row.ProposalID == id && row.VoterAddress == voter {
						heights = append(heights, row.BlockHeight)
					}
				}
			}
		case compute.NamespaceCommunityPool:
			for _, row := range s.CommunityPool {
				heights = append(heights, row.BlockHeight)
			}
		case compute.NamespaceExtraction:
			addr, name, _ := strings.Cut(rest, ":")
			for _, row := range s.Extractions {
				if row.Address == addr && row.Name == name {
					heights = append(heights, row.BlockHeight)
				}
			}
		case compute.NamespaceFeegrant:
			granter, grantee, _ := strings.Cut(rest, ":")
			for _, row := range s.Feegrants {
				if granter != compute.FeegrantEitherSide && row.Granter != granter {
					continue
				}
				if grantee != compute.FeegrantEitherSide && row.Grantee != grantee {
					continue
				}
				heights = append(heights, row.BlockHeight)
			}
		}
	}
	return heights
}

// ---------------------------------------------------------------------------
// Computations

func computationKey(targetAddress, formulaType, formulaName, argsHash string, height uint64) string {
	return strings.Join([]string{targetAddress, formulaType, formulaName, argsHash, strconv.FormatUint(height, 10)}, "|")
}

func (s *Store) LatestComputation(_ context.Context, targetAddress string, formulaType compute.FormulaType, formulaName, argsHash string, uptoHeight uint64) (*chainmodels.Computation, error) {
	s.count()
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *chainmodels.Computation
	for key := range s.computations {
		comp := s.computations[key]
		if comp.TargetAddress != targetAddress || comp.FormulaType != string(formulaType) ||
			comp.FormulaName != formulaName || comp.ArgsHash != argsHash || comp.BlockHeight > uptoHeight {
			continue
		}
		if best == nil || comp.BlockHeight > best.BlockHeight {
			c := comp
			best = &c
		}
	}
	return best, nil
}

func (s *Store) ComputationsInRange(_ context.Context, targetAddress string, formulaType compute.FormulaType, formulaName, argsHash string, afterHeight, uptoHeight uint64) ([]chainmodels.Computation, error) {
	s.count()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chainmodels.Computation, 0)
	for key := range s.computations {
		comp := s.computations[key]
		if comp.TargetAddress != targetAddress || comp.FormulaType != string(formulaType) ||
			comp.FormulaName != formulaName || comp.ArgsHash != argsHash {
			continue
		}
		if comp.BlockHeight > afterHeight && comp.BlockHeight <= uptoHeight {
			out = append(out, comp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockHeight < out[j].BlockHeight })
	return out, nil
}

func (s *Store) StoreComputations(_ context.Context, computations []*chainmodels.Computation) error {
	s.count()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, comp := range computations {
		key := computationKey(comp.TargetAddress, comp.FormulaType, comp.FormulaName, comp.ArgsHash, comp.BlockHeight)
		if prev, ok := s.computations[key]; ok && prev.LatestBlockHeightValid > comp.LatestBlockHeightValid {
			// Replacing semantics: the larger validity version survives.
			continue
		}
		s.computations[key] = *comp
	}
	return nil
}

// StoredComputations returns every persisted row, ascending by height.
func (s *Store) StoredComputations() []chainmodels.Computation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chainmodels.Computation, 0, len(s.computations))
	for key := range s.computations {
		out = append(out, s.computations[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockHeight < out[j].BlockHeight })
	return out
}

// ---------------------------------------------------------------------------
// Blocks

func (s *Store) BlockAtOrBefore(_ context.Context, height uint64) (*chainmodels.Block, error) {
	s.count()
	var best *chainmodels.Block
	for i := range s.Blocks {
		block := &s.Blocks[i]
		if block.Height > height {
			continue
		}
		if best == nil || block.Height > best.Height {
			best = block
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) BlockAtOrAfterTime(_ context.Context, timeUnixMs uint64) (*chainmodels.Block, error) {
	s.count()
	var best *chainmodels.Block
	for i := range s.Blocks {
		block := &s.Blocks[i]
		if block.TimeUnixMs < timeUnixMs {
			continue
		}
		if best == nil || block.TimeUnixMs < best.TimeUnixMs {
			best = block
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) FirstBlock(_ context.Context) (*chainmodels.Block, error) {
	s.count()
	var best *chainmodels.Block
	for i := range s.Blocks {
		block := &s.Blocks[i]
		if best == nil || block.Height < best.Height {
			best = block
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) GetState(_ context.Context) (*chainmodels.State, error) {
	s.count()
	if s.State == nil {
		return nil, nil
	}
	out := *s.State
	return &out, nil
}

// ---------------------------------------------------------------------------
// Helpers

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func page[T any](list []T, limit, offset uint64) []T {
	start := min(offset, uint64(len(list)))
	end := uint64(len(list))
	if limit > 0 {
		end = min(start+limit, end)
	}
	return list[start:end]
}

func numericLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// likeMatch interprets a SQL LIKE pattern with backslash escapes.
func likeMatch(pattern, s string) bool {
	var re strings.Builder
	re.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			re.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			re.WriteString(".*")
		case r == '_':
			re.WriteString(".")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	matched, err := regexp.MatchString(re.String(), s)
	return err == nil && matched
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// globMatch interprets the catalogue's '*' globs.
func globMatch(pattern, s string) bool {
	return likeMatch(compute.GlobToLike(pattern), s)
}
