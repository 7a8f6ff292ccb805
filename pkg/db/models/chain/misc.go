package chain

const CommunityPoolStateEventsTableName = "community_pool_state_events"
const ExtractionsTableName = "extractions"
const FeegrantAllowancesTableName = "feegrant_allowances"

// CommunityPoolStateEventColumns defines the schema for the
// community_pool_state_events table.
var CommunityPoolStateEventColumns = []ColumnDef{
	{Name: "balances", Type: "Map(String, String)", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// CommunityPoolStateEvent is a per-height snapshot of the distribution
// module's community pool, denom → decimal amount.
type CommunityPoolStateEvent struct {
	Balances        map[string]string `ch:"balances" json:"balances"`
	BlockHeight     uint64            `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64            `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// ExtractionColumns defines the schema for the extractions table.
var ExtractionColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "data", Type: "String", Codec: "ZSTD(3)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// Extraction is a named datum extracted off-chain for an address by an
// external pipeline and written back into the store.
type Extraction struct {
	Address         string `ch:"address" json:"address"`
	Name            string `ch:"name" json:"name"`
	Data            string `ch:"data" json:"data"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// FeegrantAllowanceColumns defines the schema for the feegrant_allowances
// table.
var FeegrantAllowanceColumns = []ColumnDef{
	{Name: "granter", Type: "String", Codec: "ZSTD(1)"},
	{Name: "grantee", Type: "String", Codec: "ZSTD(1)"},
	{Name: "data", Type: "String", Codec: "ZSTD(3)"},
	{Name: "active", Type: "Bool"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// FeegrantAllowance is one historical state of a fee allowance between a
// granter and a grantee. Revocation appends a row with Active=false.
type FeegrantAllowance struct {
	Granter         string `ch:"granter" json:"granter"`
	Grantee         string `ch:"grantee" json:"grantee"`
	Data            string `ch:"data" json:"data"`
	Active          bool   `ch:"active" json:"active"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}
