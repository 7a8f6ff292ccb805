package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// prefetchPool bounds the concurrency of batch loads across all in-flight
// evaluations.
var prefetchPool = pond.NewPool(16)

// EnvOptions carries everything an Environment is bound to.
type EnvOptions struct {
	ChainID       string
	TargetAddress string
	Block         chainmodels.Block
	UseBlockDate  bool
	Args          map[string]string
	Store         EventStore
	CodeIDs       CodeIDConfig
	Recorder      *Recorder
	// OnFetch is invoked with the row count of every positive read. It is a
	// side-effect hook (credit accrual lives behind it) and must never
	// influence returned values.
	OnFetch func(rows int)
}

// Env is the capability object handed to a formula: typed getters over
// historical chain state, all filtered to the target block. Every read
// records its dependent key before fetching, so a miss still invalidates
// the computation when the key later appears.
//
// The embedded memo lives for this evaluation only. Env methods are safe
// for the single formula goroutine plus the prefetch workers; formulas
// themselves must not retain the Env past their return.
type Env struct {
	store         EventStore
	chainID       string
	targetAddress string
	block         chainmodels.Block
	useBlockDate  bool
	now           time.Time
	args          map[string]string
	codeIDs       CodeIDConfig
	onFetch       func(rows int)

	mu    sync.Mutex
	rec   *Recorder
	cache *evalCache
}

// NewEnv constructs an Environment bound to a target block.
func NewEnv(opts EnvOptions) *Env {
	rec := opts.Recorder
	if rec == nil {
		rec = NewRecorder()
	}
	return &Env{
		store:         opts.Store,
		chainID:       opts.ChainID,
		targetAddress: opts.TargetAddress,
		block:         opts.Block,
		useBlockDate:  opts.UseBlockDate,
		now:           time.Now().UTC(),
		args:          opts.Args,
		codeIDs:       opts.CodeIDs,
		onFetch:       opts.OnFetch,
		rec:           rec,
		cache:         newEvalCache(),
	}
}

// ChainID returns the chain identifier the evaluation targets.
func (e *Env) ChainID() string { return e.chainID }

// TargetAddress returns the address the formula was invoked for: a contract
// address, wallet address or validator operator address depending on the
// formula type, empty for generic formulas.
func (e *Env) TargetAddress() string { return e.targetAddress }

// Block returns the target block.
func (e *Env) Block() chainmodels.Block { return e.block }

// Date returns the target block's time when the evaluation is historical,
// or the wall clock at Env construction otherwise.
func (e *Env) Date() time.Time {
	if e.useBlockDate {
		return e.block.Time()
	}
	return e.now
}

// Arg returns a user argument.
func (e *Env) Arg(name string) (string, bool) {
	v, ok := e.args[name]
	return v, ok
}

// RequireArg returns a user argument or a formula-level error naming it.
func (e *Env) RequireArg(name string) (string, error) {
	v, ok := e.args[name]
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return v, nil
}

func (e *Env) record(key DependentKey) {
	e.mu.Lock()
	e.rec.Record(key)
	e.mu.Unlock()
}

func (e *Env) fetched(rows int) {
	if e.onFetch != nil && rows > 0 {
		e.onFetch(rows)
	}
}

func validAddress(address string) error {
	if address == "" || strings.ContainsRune(address, ':') {
		return fmt.Errorf("invalid address %q: namespace collision", address)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wasm state

// Get performs a point read of a contract storage key composed from the
// given segments and returns the stored JSON value verbatim, undecoded.
func (e *Env) Get(ctx context.Context, contractAddress string, keySegments ...any) (json.RawMessage, bool, error) {
	if err := validAddress(contractAddress); err != nil {
		return nil, false, err
	}
	raw, err := Key(keySegments...)
	if err != nil {
		return nil, false, err
	}
	row, err := e.wasmStateRow(ctx, contractAddress, EncodeKey(raw))
	if err != nil {
		return nil, false, err
	}
	if row == nil || row.Deleted {
		return nil, false, nil
	}
	return json.RawMessage(row.Value), true, nil
}

// GetMap performs a prefix read over a map namespace and returns the
// entries keyed by their decoded trailing segment. Tombstoned keys are
// omitted.
func (e *Env) GetMap(ctx context.Context, contractAddress string, keyType KeyType, nameSegments ...any) (map[string]json.RawMessage, error) {
	if err := validAddress(contractAddress); err != nil {
		return nil, err
	}
	prefix, err := KeyPrefix(nameSegments...)
	if err != nil {
		return nil, err
	}
	hexPrefix := EncodeKey(prefix)
	rows, err := e.wasmStatePrefixRows(ctx, contractAddress, hexPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for i := range rows {
		if rows[i].Deleted {
			continue
		}
		trailing, err := DecodeKey(strings.TrimPrefix(rows[i].Key, hexPrefix))
		if err != nil {
			return nil, err
		}
		out[DecodeTrailing(trailing, keyType)] = json.RawMessage(rows[i].Value)
	}
	return out, nil
}

// GetDateKeyModified returns the time of the most recent write (or delete)
// of the key at-or-below the target block.
func (e *Env) GetDateKeyModified(ctx context.Context, contractAddress string, keySegments ...any) (uint64, bool, error) {
	if err := validAddress(contractAddress); err != nil {
		return 0, false, err
	}
	raw, err := Key(keySegments...)
	if err != nil {
		return 0, false, err
	}
	row, err := e.wasmStateRow(ctx, contractAddress, EncodeKey(raw))
	if err != nil || row == nil {
		return 0, false, err
	}
	return row.BlockTimeUnixMs, true, nil
}

// GetDateKeyFirstSet returns the time of the first non-deleted write of the
// key. It reads ascending order and bypasses the memo: the memo caches the
// most-recent shape, which cannot answer "first".
func (e *Env) GetDateKeyFirstSet(ctx context.Context, contractAddress string, keySegments ...any) (uint64, bool, error) {
	return e.dateKeyFirstSet(ctx, contractAddress, nil, keySegments...)
}

// GetDateKeyFirstSetWithValueMatch is GetDateKeyFirstSet restricted to
// writes whose JSON value equals one of the given encodings.
func (e *Env) GetDateKeyFirstSetWithValueMatch(ctx context.Context, contractAddress string, valueFilters []string, keySegments ...any) (uint64, bool, error) {
	return e.dateKeyFirstSet(ctx, contractAddress, valueFilters, keySegments...)
}

func (e *Env) dateKeyFirstSet(ctx context.Context, contractAddress string, valueFilters []string, keySegments ...any) (uint64, bool, error) {
	if err := validAddress(contractAddress); err != nil {
		return 0, false, err
	}
	raw, err := Key(keySegments...)
	if err != nil {
		return 0, false, err
	}
	hexKey := EncodeKey(raw)
	e.record(WasmStateDep(contractAddress, hexKey, false))
	row, err := e.store.WasmStateFirstSet(ctx, contractAddress, hexKey, e.block.Height, valueFilters)
	if err != nil {
		return 0, false, transportErr(err)
	}
	if row == nil {
		return 0, false, nil
	}
	e.fetched(1)
	return row.BlockTimeUnixMs, true, nil
}

// wasmStateRow is the memoised point read.
func (e *Env) wasmStateRow(ctx context.Context, contractAddress, hexKey string) (*chainmodels.WasmStateEvent, error) {
	dep := WasmStateDep(contractAddress, hexKey, false)
	e.mu.Lock()
	e.rec.Record(dep)
	row, hit := e.cache.lookupEvent(dep.Key)
	e.mu.Unlock()
	if hit {
		return row, nil
	}
	row, err := e.store.WasmStateLatest(ctx, contractAddress, hexKey, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	if row != nil {
		e.fetched(1)
	}
	e.mu.Lock()
	e.cache.storeEvent(dep.Key, row)
	e.mu.Unlock()
	return row, nil
}

// wasmStatePrefixRows is the memoised prefix read. Tombstones are kept in
// the memo so point reads inside the prefix shadow correctly.
func (e *Env) wasmStatePrefixRows(ctx context.Context, contractAddress, hexPrefix string) ([]chainmodels.WasmStateEvent, error) {
	dep := WasmStateDep(contractAddress, hexPrefix, true)
	e.mu.Lock()
	e.rec.Record(dep)
	rows, hit := e.cache.lookupEventPrefix(dep.Key)
	e.mu.Unlock()
	if hit {
		return rows, nil
	}
	rows, err := e.store.WasmStateLatestByPrefix(ctx, contractAddress, hexPrefix, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	e.mu.Lock()
	e.cache.storeEventPrefix(dep.Key, rows)
	e.mu.Unlock()
	return rows, nil
}

// PrefetchKey is one entry of a batch load: a composed key, point or
// prefix.
type PrefetchKey struct {
	Segments []any
	Prefix   bool
}

// Prefetch batch-loads mixed point and prefix keys into the evaluation
// memo so subsequent getters resolve from memory.
func (e *Env) Prefetch(ctx context.Context, contractAddress string, keys ...PrefetchKey) error {
	if err := validAddress(contractAddress); err != nil {
		return err
	}
	group := prefetchPool.NewGroupContext(ctx)
	for _, k := range keys {
		group.SubmitErr(func() error {
			if k.Prefix {
				prefix, err := KeyPrefix(k.Segments...)
				if err != nil {
					return err
				}
				_, err = e.wasmStatePrefixRows(ctx, contractAddress, EncodeKey(prefix))
				return err
			}
			raw, err := Key(k.Segments...)
			if err != nil {
				return err
			}
			_, err = e.wasmStateRow(ctx, contractAddress, EncodeKey(raw))
			return err
		})
	}
	return group.Wait()
}

// ---------------------------------------------------------------------------
// Transformations

// TransformationMatch is one most-recent transformation row that matched a
// name pattern and survived the code-id filter.
type TransformationMatch struct {
	ContractAddress string          `json:"contractAddress"`
	Name            string          `json:"name"`
	Value           json.RawMessage `json:"value"`
}

// TransformationMatchesOptions narrows GetTransformationMatches.
type TransformationMatchesOptions struct {
	// CodeIDKeys filters matches to contracts whose code id is in the
	// resolved union. Applied after the query: the memo is keyed only on
	// the name pattern, so the filter cannot live in SQL.
	CodeIDKeys []string
	// Where keeps only matches whose value passes the predicate.
	Where func(value json.RawMessage) bool
	// Limit caps the number of matches returned (0 = all).
	Limit uint64
}

// GetTransformationMatch returns the first match of the pattern for the
// contract.
func (e *Env) GetTransformationMatch(ctx context.Context, contractAddress, nameLike string) (*TransformationMatch, bool, error) {
	matches, err := e.GetTransformationMatches(ctx, contractAddress, nameLike, nil)
	if err != nil || len(matches) == 0 {
		return nil, false, err
	}
	return &matches[0], true, nil
}

// GetTransformationMatches returns the most-recent transformation per
// (name, contractAddress) whose name matches the glob pattern ('*'
// wildcards). An empty contractAddress spans every contract.
func (e *Env) GetTransformationMatches(ctx context.Context, contractAddress, nameLike string, opts *TransformationMatchesOptions) ([]TransformationMatch, error) {
	dep := TransformationDep(contractAddress, nameLike)
	e.mu.Lock()
	e.rec.Record(dep)
	rows, hit := e.cache.lookupTransformation(dep.Key)
	e.mu.Unlock()
	if !hit {
		var addrs []string
		if contractAddress != "" {
			addrs = []string{contractAddress}
		}
		var err error
		rows, err = e.store.TransformationsLatestByName(ctx, addrs, GlobToLike(nameLike), e.block.Height, 0)
		if err != nil {
			return nil, transportErr(err)
		}
		e.fetched(len(rows))
		e.mu.Lock()
		e.cache.storeTransformation(dep.Key, strings.Contains(nameLike, "*"), rows)
		e.mu.Unlock()
	}

	var allowed map[uint64]bool
	if opts != nil && len(opts.CodeIDKeys) > 0 {
		allowed = e.codeIDs.Resolve(opts.CodeIDKeys...)
	}

	matches := make([]TransformationMatch, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.ValueAbsent() {
			continue
		}
		if allowed != nil {
			contract, err := e.contract(ctx, row.ContractAddress)
			if err != nil {
				return nil, err
			}
			if contract == nil || !allowed[contract.CodeID] {
				continue
			}
		}
		if opts != nil && opts.Where != nil && !opts.Where(json.RawMessage(row.Value)) {
			continue
		}
		matches = append(matches, TransformationMatch{
			ContractAddress: row.ContractAddress,
			Name:            row.Name,
			Value:           json.RawMessage(row.Value),
		})
		if opts != nil && opts.Limit > 0 && uint64(len(matches)) >= opts.Limit {
			break
		}
	}
	return matches, nil
}

// GetTransformationMap returns the most-recent transformations named
// "namePrefix:<suffix>" as a suffix-keyed mapping. Null-valued
// transformations are omitted.
func (e *Env) GetTransformationMap(ctx context.Context, contractAddress, namePrefix string) (map[string]json.RawMessage, error) {
	if err := validAddress(contractAddress); err != nil {
		return nil, err
	}
	full := namePrefix + ":"
	dep := TransformationPrefixDep(contractAddress, full)
	e.mu.Lock()
	e.rec.Record(dep)
	rows, hit := e.cache.lookupTransformation(dep.Key)
	e.mu.Unlock()
	if !hit {
		var err error
		rows, err = e.store.TransformationsLatestByPrefix(ctx, contractAddress, full, e.block.Height)
		if err != nil {
			return nil, transportErr(err)
		}
		e.fetched(len(rows))
		e.mu.Lock()
		e.cache.storeTransformation(dep.Key, true, rows)
		e.mu.Unlock()
	}
	out := make(map[string]json.RawMessage, len(rows))
	for i := range rows {
		if rows[i].ValueAbsent() {
			continue
		}
		out[strings.TrimPrefix(rows[i].Name, full)] = json.RawMessage(rows[i].Value)
	}
	return out, nil
}

// GetDateFirstTransformed returns the time the pattern first produced a
// transformation. Ascending read, memo bypassed.
func (e *Env) GetDateFirstTransformed(ctx context.Context, contractAddress, nameLike string) (uint64, bool, error) {
	e.record(TransformationDep(contractAddress, nameLike))
	row, err := e.store.TransformationFirst(ctx, contractAddress, GlobToLike(nameLike), e.block.Height)
	if err != nil {
		return 0, false, transportErr(err)
	}
	if row == nil {
		return 0, false, nil
	}
	e.fetched(1)
	return row.BlockTimeUnixMs, true, nil
}

// PrefetchTransformations batch-loads exact transformation names into the
// evaluation memo.
func (e *Env) PrefetchTransformations(ctx context.Context, contractAddress string, names ...string) error {
	if err := validAddress(contractAddress); err != nil {
		return err
	}
	group := prefetchPool.NewGroupContext(ctx)
	for _, name := range names {
		group.SubmitErr(func() error {
			_, err := e.GetTransformationMatches(ctx, contractAddress, name, nil)
			return err
		})
	}
	return group.Wait()
}

// GlobToLike rewrites the catalogue's '*' globs into SQL LIKE patterns.
func GlobToLike(pattern string) string {
	escaped := strings.ReplaceAll(pattern, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "%", `\%`)
	escaped = strings.ReplaceAll(escaped, "_", `\_`)
	return strings.ReplaceAll(escaped, "*", "%")
}

// ---------------------------------------------------------------------------
// Contracts

// contract is the memoised contract registry read.
func (e *Env) contract(ctx context.Context, address string) (*chainmodels.Contract, error) {
	e.mu.Lock()
	contract, hit := e.cache.lookupContract(address)
	e.mu.Unlock()
	if hit {
		return contract, nil
	}
	contract, err := e.store.GetContract(ctx, address)
	if err != nil {
		return nil, transportErr(err)
	}
	if contract != nil {
		e.fetched(1)
	}
	e.mu.Lock()
	e.cache.storeContract(address, contract)
	e.mu.Unlock()
	return contract, nil
}

// GetContract returns the contract record, restricted (when code-id keys
// are given) to contracts whose code id is in the resolved set.
func (e *Env) GetContract(ctx context.Context, address string, codeIDKeys ...string) (*chainmodels.Contract, bool, error) {
	if err := validAddress(address); err != nil {
		return nil, false, err
	}
	contract, err := e.contract(ctx, address)
	if err != nil || contract == nil {
		return nil, false, err
	}
	if len(codeIDKeys) > 0 && !e.codeIDs.Resolve(codeIDKeys...)[contract.CodeID] {
		return nil, false, nil
	}
	return contract, true, nil
}

// ContractMatchesCodeIDKeys reports whether the contract's code id is in
// the union of the given code-id key sets.
func (e *Env) ContractMatchesCodeIDKeys(ctx context.Context, address string, codeIDKeys ...string) (bool, error) {
	_, ok, err := e.GetContract(ctx, address, codeIDKeys...)
	return ok, err
}

// GetCodeIDKeyForContract returns the first code-id key whose set contains
// the contract's code id.
func (e *Env) GetCodeIDKeyForContract(ctx context.Context, address string) (string, bool, error) {
	contract, err := e.contract(ctx, address)
	if err != nil || contract == nil {
		return "", false, err
	}
	keys := e.codeIDs.KeysForCodeID(contract.CodeID)
	if len(keys) == 0 {
		return "", false, nil
	}
	return keys[0], true, nil
}

// ---------------------------------------------------------------------------
// Bank

// GetBalance returns the address's balance for one denom. The aggregate
// snapshot is preferred; per-denom history answers only for contracts in
// the tracked code-id sets.
func (e *Env) GetBalance(ctx context.Context, address, denom string) (string, bool, error) {
	if err := validAddress(address); err != nil {
		return "", false, err
	}
	e.record(BankBalanceDep(address))
	snap, err := e.store.BankBalanceSnapshot(ctx, address, e.block.Height)
	if err != nil {
		return "", false, transportErr(err)
	}
	if snap != nil {
		e.fetched(1)
		balance, ok := snap.Balances[denom]
		return balance, ok, nil
	}

	tracked, err := e.bankHistoryTracked(ctx, address)
	if err != nil || !tracked {
		return "", false, err
	}
	e.record(BankStateDep(address, denom))
	row, err := e.store.BankStateLatest(ctx, address, denom, e.block.Height)
	if err != nil {
		return "", false, transportErr(err)
	}
	if row == nil {
		return "", false, nil
	}
	e.fetched(1)
	return row.Balance, true, nil
}

// GetBalances returns every denom the address holds.
func (e *Env) GetBalances(ctx context.Context, address string) (map[string]string, error) {
	if err := validAddress(address); err != nil {
		return nil, err
	}
	e.record(BankBalanceDep(address))
	snap, err := e.store.BankBalanceSnapshot(ctx, address, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	if snap != nil {
		e.fetched(1)
		return snap.Balances, nil
	}

	tracked, err := e.bankHistoryTracked(ctx, address)
	if err != nil || !tracked {
		return map[string]string{}, err
	}
	e.record(BankStateAllDep(address))
	rows, err := e.store.BankStateLatestAll(ctx, address, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	out := make(map[string]string, len(rows))
	for i := range rows {
		out[rows[i].Denom] = rows[i].Balance
	}
	return out, nil
}

func (e *Env) bankHistoryTracked(ctx context.Context, address string) (bool, error) {
	if len(e.codeIDs.TrackBankHistoryKeys) == 0 {
		return false, nil
	}
	return e.ContractMatchesCodeIDKeys(ctx, address, e.codeIDs.TrackBankHistoryKeys...)
}

// ---------------------------------------------------------------------------
// Staking

// GetSlashEvents returns the validator's slashes, most recently registered
// first.
func (e *Env) GetSlashEvents(ctx context.Context, operatorAddress string) ([]chainmodels.StakingSlashEvent, error) {
	if err := validAddress(operatorAddress); err != nil {
		return nil, err
	}
	e.record(StakingSlashDep(operatorAddress))
	rows, err := e.store.SlashEvents(ctx, operatorAddress, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	return rows, nil
}

// ---------------------------------------------------------------------------
// Transactions

// GetTxEvents returns the contract's transactions, newest first. The
// dependency is always the address prefix: any new transaction invalidates
// the computation regardless of the filter.
func (e *Env) GetTxEvents(ctx context.Context, contractAddress string, filter *TxEventFilter) ([]chainmodels.WasmTxEvent, error) {
	if err := validAddress(contractAddress); err != nil {
		return nil, err
	}
	e.record(WasmTxDep(contractAddress))
	rows, err := e.store.WasmTxEvents(ctx, contractAddress, e.block.Height, filter)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	return rows, nil
}

// ---------------------------------------------------------------------------
// Governance

// GetProposal returns the most recent snapshot of a proposal.
func (e *Env) GetProposal(ctx context.Context, proposalID string) (*chainmodels.GovProposal, bool, error) {
	e.record(GovProposalDep(proposalID))
	row, err := e.store.ProposalLatest(ctx, proposalID, e.block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if row == nil {
		return nil, false, nil
	}
	e.fetched(1)
	return row, true, nil
}

// GetProposals pages through the latest snapshot of every proposal.
func (e *Env) GetProposals(ctx context.Context, ascending bool, limit, offset uint64) ([]chainmodels.GovProposal, error) {
	e.record(GovProposalAllDep())
	rows, err := e.store.ProposalsLatest(ctx, e.block.Height, ascending, limit, offset)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	return rows, nil
}

// GetProposalCount returns the number of proposals visible at the target
// block.
func (e *Env) GetProposalCount(ctx context.Context) (uint64, error) {
	e.record(GovProposalAllDep())
	count, err := e.store.ProposalCount(ctx, e.block.Height)
	if err != nil {
		return 0, transportErr(err)
	}
	return count, nil
}

// GetProposalVote returns a voter's latest vote on a proposal.
func (e *Env) GetProposalVote(ctx context.Context, proposalID, voter string) (*chainmodels.GovProposalVote, bool, error) {
	e.record(GovVoteDep(proposalID, voter))
	row, err := e.store.ProposalVoteLatest(ctx, proposalID, voter, e.block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if row == nil {
		return nil, false, nil
	}
	e.fetched(1)
	return row, true, nil
}

// GetProposalVotes pages through the latest vote per voter on a proposal.
func (e *Env) GetProposalVotes(ctx context.Context, proposalID string, ascending bool, limit, offset uint64) ([]chainmodels.GovProposalVote, error) {
	e.record(GovVoteAllDep(proposalID))
	rows, err := e.store.ProposalVotesLatest(ctx, proposalID, e.block.Height, ascending, limit, offset)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	return rows, nil
}

// GetProposalVoteCount returns the number of distinct voters on a proposal.
func (e *Env) GetProposalVoteCount(ctx context.Context, proposalID string) (uint64, error) {
	e.record(GovVoteAllDep(proposalID))
	count, err := e.store.ProposalVoteCount(ctx, proposalID, e.block.Height)
	if err != nil {
		return 0, transportErr(err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Distribution, extractions, fee grants

// GetCommunityPoolBalances returns the most recent community pool snapshot.
func (e *Env) GetCommunityPoolBalances(ctx context.Context) (map[string]string, bool, error) {
	e.record(CommunityPoolDep())
	row, err := e.store.CommunityPoolLatest(ctx, e.block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if row == nil {
		return nil, false, nil
	}
	e.fetched(1)
	return row.Balances, true, nil
}

// GetExtraction returns the latest extracted datum by name.
func (e *Env) GetExtraction(ctx context.Context, address, name string) (*chainmodels.Extraction, bool, error) {
	if err := validAddress(address); err != nil {
		return nil, false, err
	}
	e.record(ExtractionDep(address, name))
	row, err := e.store.ExtractionLatest(ctx, address, name, e.block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if row == nil {
		return nil, false, nil
	}
	e.fetched(1)
	return row, true, nil
}

// GetFeegrantAllowance returns the latest allowance state between granter
// and grantee (revoked rows included; check Active).
func (e *Env) GetFeegrantAllowance(ctx context.Context, granter, grantee string) (*chainmodels.FeegrantAllowance, bool, error) {
	e.record(FeegrantDep(granter, grantee))
	row, err := e.store.FeegrantAllowanceLatest(ctx, granter, grantee, e.block.Height)
	if err != nil {
		return nil, false, transportErr(err)
	}
	if row == nil {
		return nil, false, nil
	}
	e.fetched(1)
	return row, true, nil
}

// GetFeegrantAllowances lists the active allowances an address granted or
// received.
func (e *Env) GetFeegrantAllowances(ctx context.Context, address string, side GrantSide) ([]chainmodels.FeegrantAllowance, error) {
	if err := validAddress(address); err != nil {
		return nil, err
	}
	switch side {
	case GrantSideGranted:
		e.record(FeegrantDep(address, FeegrantEitherSide))
	case GrantSideReceived:
		e.record(FeegrantDep(FeegrantEitherSide, address))
	default:
		return nil, fmt.Errorf("%w: grant side %q", ErrBadInput, side)
	}
	rows, err := e.store.FeegrantAllowancesLatest(ctx, address, side, e.block.Height)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	active := rows[:0]
	for i := range rows {
		if rows[i].Active {
			active = append(active, rows[i])
		}
	}
	return active, nil
}

// HasFeegrantAllowance reports whether an active allowance exists between
// granter and grantee.
func (e *Env) HasFeegrantAllowance(ctx context.Context, granter, grantee string) (bool, error) {
	row, ok, err := e.GetFeegrantAllowance(ctx, granter, grantee)
	if err != nil || !ok {
		return false, err
	}
	return row.Active, nil
}

// ---------------------------------------------------------------------------
// Escape hatch

// Query runs a read-only SQL statement with bound parameters. The caller is
// responsible for any block filter; no dependencies are recorded.
func (e *Env) Query(ctx context.Context, query string, binds ...any) ([]map[string]any, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return nil, fmt.Errorf("query must be read-only")
	}
	rows, err := e.store.RawQuery(ctx, query, binds...)
	if err != nil {
		return nil, transportErr(err)
	}
	e.fetched(len(rows))
	return rows, nil
}
