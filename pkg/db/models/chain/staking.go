package chain

const StakingSlashEventsTableName = "staking_slash_events"
const ValidatorsTableName = "validators"

// StakingSlashEventColumns defines the schema for the staking_slash_events
// table.
var StakingSlashEventColumns = []ColumnDef{
	{Name: "validator_operator_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "registered_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "registered_block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "infraction_block_height", Type: "UInt64", Codec: "Delta, LZ4"},
	{Name: "slash_factor", Type: "String", Codec: "ZSTD(1)"},
	{Name: "amount_slashed", Type: "String", Codec: "ZSTD(1)"},
	{Name: "effective_fraction", Type: "String", Codec: "ZSTD(1)"},
	{Name: "staked_tokens_burned", Type: "String", Codec: "ZSTD(1)"},
}

// StakingSlashEvent records one slash applied to a validator. The slash is
// registered at a later height than the infraction it punishes; reads filter
// and order on the registered height.
type StakingSlashEvent struct {
	ValidatorOperatorAddress  string `ch:"validator_operator_address" json:"validatorOperatorAddress"`
	RegisteredBlockHeight     uint64 `ch:"registered_block_height" json:"registeredBlockHeight"`
	RegisteredBlockTimeUnixMs uint64 `ch:"registered_block_time_unix_ms" json:"registeredBlockTimeUnixMs"`
	InfractionBlockHeight     uint64 `ch:"infraction_block_height" json:"infractionBlockHeight"`
	SlashFactor               string `ch:"slash_factor" json:"slashFactor"`
	AmountSlashed             string `ch:"amount_slashed" json:"amountSlashed"`
	EffectiveFraction         string `ch:"effective_fraction" json:"effectiveFraction"`
	StakedTokensBurned        string `ch:"staked_tokens_burned" json:"stakedTokensBurned"`
}

// ValidatorColumns defines the schema for the validators table.
var ValidatorColumns = []ColumnDef{
	{Name: "operator_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// Validator is the existence registry for validator operator addresses.
// Validator formulas require the address to be present here before they run.
type Validator struct {
	OperatorAddress string `ch:"operator_address" json:"operatorAddress"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}
