package compute

import (
	"context"

	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// TxEventFilter narrows a contract's transaction history. Zero values mean
// "any". Limit zero means unbounded.
type TxEventFilter struct {
	Action string
	Sender string
	Limit  uint64
	Offset uint64
}

// GrantSide selects the direction of a fee-grant listing.
type GrantSide string

const (
	GrantSideGranted  GrantSide = "granted"  // allowances the address granted
	GrantSideReceived GrantSide = "received" // allowances granted to the address
)

// EventStore is the typed, history-aware read surface over the versioned
// event tables. Every read applies the block filter `blockHeight <= height`
// and returns either the row with greatest height (point reads) or the
// greatest-height row per key (map reads). Point reads return nil when no
// row satisfies the filter. Implementations surface transport errors
// unchanged and never interpret values.
type EventStore interface {
	// Wasm state. Keys are hex strings; prefix reads are byte-level
	// startsWith. Latest-by-prefix includes tombstones so callers can
	// shadow correctly; first-set reads skip tombstones and run ascending.
	WasmStateLatest(ctx context.Context, contractAddress, hexKey string, height uint64) (*chainmodels.WasmStateEvent, error)
	WasmStateLatestByPrefix(ctx context.Context, contractAddress, hexKeyPrefix string, height uint64) ([]chainmodels.WasmStateEvent, error)
	WasmStateFirstSet(ctx context.Context, contractAddress, hexKey string, height uint64, valueFilters []string) (*chainmodels.WasmStateEvent, error)

	// Transformations. namePattern uses SQL LIKE syntax ('%' wildcards);
	// contractAddresses empty means any contract.
	TransformationLatest(ctx context.Context, contractAddress, name string, height uint64) (*chainmodels.WasmStateEventTransformation, error)
	TransformationsLatestByName(ctx context.Context, contractAddresses []string, namePattern string, height uint64, limit uint64) ([]chainmodels.WasmStateEventTransformation, error)
	TransformationsLatestByPrefix(ctx context.Context, contractAddress, namePrefix string, height uint64) ([]chainmodels.WasmStateEventTransformation, error)
	TransformationFirst(ctx context.Context, contractAddress, namePattern string, height uint64) (*chainmodels.WasmStateEventTransformation, error)

	// Contracts and validators (registries; not height-versioned).
	GetContract(ctx context.Context, address string) (*chainmodels.Contract, error)
	GetValidator(ctx context.Context, operatorAddress string) (*chainmodels.Validator, error)

	// Transactions, descending by height then tx index.
	WasmTxEvents(ctx context.Context, contractAddress string, height uint64, filter *TxEventFilter) ([]chainmodels.WasmTxEvent, error)

	// Bank. The balance snapshot is the single latest aggregate row; it is
	// returned only when its height is at-or-below the target.
	BankBalanceSnapshot(ctx context.Context, address string, height uint64) (*chainmodels.BankBalance, error)
	BankStateLatest(ctx context.Context, address, denom string, height uint64) (*chainmodels.BankStateEvent, error)
	BankStateLatestAll(ctx context.Context, address string, height uint64) ([]chainmodels.BankStateEvent, error)

	// Staking, descending by registered height.
	SlashEvents(ctx context.Context, operatorAddress string, height uint64) ([]chainmodels.StakingSlashEvent, error)

	// Governance, distinct-on natural key with greatest height.
	ProposalLatest(ctx context.Context, proposalID string, height uint64) (*chainmodels.GovProposal, error)
	ProposalsLatest(ctx context.Context, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposal, error)
	ProposalCount(ctx context.Context, height uint64) (uint64, error)
	ProposalVoteLatest(ctx context.Context, proposalID, voter string, height uint64) (*chainmodels.GovProposalVote, error)
	ProposalVotesLatest(ctx context.Context, proposalID string, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposalVote, error)
	ProposalVoteCount(ctx context.Context, proposalID string, height uint64) (uint64, error)

	// Distribution.
	CommunityPoolLatest(ctx context.Context, height uint64) (*chainmodels.CommunityPoolStateEvent, error)

	// Extractions and fee grants.
	ExtractionLatest(ctx context.Context, address, name string, height uint64) (*chainmodels.Extraction, error)
	FeegrantAllowanceLatest(ctx context.Context, granter, grantee string, height uint64) (*chainmodels.FeegrantAllowance, error)
	FeegrantAllowancesLatest(ctx context.Context, address string, side GrantSide, height uint64) ([]chainmodels.FeegrantAllowance, error)

	// RawQuery is the read-only escape hatch with bound parameters. The
	// caller is responsible for any block filter; no dependency tracking.
	RawQuery(ctx context.Context, query string, binds ...any) ([]map[string]any, error)
}

// DependencyStore answers the two questions validity tracking needs: did
// anything a computation depends on change inside an interval, and where is
// the next change.
type DependencyStore interface {
	// AnyDependencyChange reports whether any dependency has a row with
	// afterHeight < blockHeight <= uptoHeight.
	AnyDependencyChange(ctx context.Context, deps []DependentKey, afterHeight, uptoHeight uint64) (bool, error)

	// NextDependencyChange returns the minimum blockHeight strictly greater
	// than afterHeight at which any dependency changes. ok is false when no
	// such row exists.
	NextDependencyChange(ctx context.Context, deps []DependentKey, afterHeight uint64) (height uint64, ok bool, err error)
}

// ComputationStore persists memoised results and their validity intervals.
// The natural key is (targetAddress, formulaType, formulaName, argsHash,
// blockHeight); writes are idempotent upserts and re-inserting with a larger
// LatestBlockHeightValid extends a record in place.
type ComputationStore interface {
	LatestComputation(ctx context.Context, targetAddress string, formulaType FormulaType, formulaName, argsHash string, uptoHeight uint64) (*chainmodels.Computation, error)
	ComputationsInRange(ctx context.Context, targetAddress string, formulaType FormulaType, formulaName, argsHash string, afterHeight, uptoHeight uint64) ([]chainmodels.Computation, error)
	StoreComputations(ctx context.Context, computations []*chainmodels.Computation) error
}

// BlockStore resolves blocks and the chain's visible head.
type BlockStore interface {
	// BlockAtOrBefore returns the block with the greatest height <= height.
	BlockAtOrBefore(ctx context.Context, height uint64) (*chainmodels.Block, error)
	// BlockAtOrAfterTime returns the earliest block at or after the
	// wall-clock instant.
	BlockAtOrAfterTime(ctx context.Context, timeUnixMs uint64) (*chainmodels.Block, error)
	FirstBlock(ctx context.Context) (*chainmodels.Block, error)
	GetState(ctx context.Context) (*chainmodels.State, error)
}

// Store is the full surface the evaluators need.
type Store interface {
	EventStore
	DependencyStore
	ComputationStore
	BlockStore
}
