package chain

const BankStateEventsTableName = "bank_state_events"
const BankBalancesTableName = "bank_balances"

// BankStateEventColumns defines the schema for the bank_state_events table.
var BankStateEventColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "denom", Type: "LowCardinality(String)"},
	{Name: "balance", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// BankStateEvent is one historical balance write for a single (address,
// denom) pair. Balance is a decimal string; amounts routinely exceed
// uint64.
type BankStateEvent struct {
	Address         string `ch:"address" json:"address"`
	Denom           string `ch:"denom" json:"denom"`
	Balance         string `ch:"balance" json:"balance"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// BankBalanceColumns defines the schema for the bank_balances table.
// ReplacingMergeTree on address with block_height as version keeps exactly
// one (latest) aggregate row per address.
var BankBalanceColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "balances", Type: "Map(String, String)", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// BankBalance is the latest-snapshot aggregate of every denom an address
// holds. Unlike the event tables this is not history: the exporter rewrites
// the row in place, so per-height reads must check BlockHeight against the
// target and fall back to bank_state_events where history is tracked.
type BankBalance struct {
	Address         string            `ch:"address" json:"address"`
	Balances        map[string]string `ch:"balances" json:"balances"`
	BlockHeight     uint64            `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64            `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}
