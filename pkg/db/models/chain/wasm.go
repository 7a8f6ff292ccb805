package chain

const WasmStateEventsTableName = "wasm_state_events"
const WasmStateEventTransformationsTableName = "wasm_state_event_transformations"
const WasmTxEventsTableName = "wasm_tx_events"

// WasmStateEventColumns defines the schema for the wasm_state_events table.
// ORDER BY (contract_address, key, block_height) serves both the point read
// (max height at-or-below target) and the prefix scan.
var WasmStateEventColumns = []ColumnDef{
	{Name: "contract_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "key", Type: "String", Codec: "ZSTD(1)"},
	{Name: "value", Type: "String", Codec: "ZSTD(3)"},
	{Name: "deleted", Type: "Bool"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// WasmStateEvent is one historical write (or delete) of a single contract
// storage key. Key is the hex encoding of the raw storage key so that
// byte-level prefixes remain string prefixes. Value is the raw JSON the
// contract stored; it is handed back verbatim. A deleted row is a tombstone
// that shadows the key from its height onward.
type WasmStateEvent struct {
	ContractAddress string `ch:"contract_address" json:"contractAddress"`
	Key             string `ch:"key" json:"key"`
	Value           string `ch:"value" json:"value"`
	Deleted         bool   `ch:"deleted" json:"deleted"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// WasmStateEventTransformationColumns defines the schema for the
// wasm_state_event_transformations table.
var WasmStateEventTransformationColumns = []ColumnDef{
	{Name: "contract_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "value", Type: "String", Codec: "ZSTD(3)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// WasmStateEventTransformation is a derived view of wasm state produced by
// an external transformer. An empty value marks "absent" (the transformer
// erased the name at this height); any present value is JSON, so the empty
// string can never collide with real data.
type WasmStateEventTransformation struct {
	ContractAddress string `ch:"contract_address" json:"contractAddress"`
	Name            string `ch:"name" json:"name"`
	Value           string `ch:"value" json:"value"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// ValueAbsent reports whether this transformation row erases the name.
func (t *WasmStateEventTransformation) ValueAbsent() bool {
	return t.Value == ""
}

// WasmTxEventColumns defines the schema for the wasm_tx_events table.
var WasmTxEventColumns = []ColumnDef{
	{Name: "contract_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "action", Type: "LowCardinality(String)"},
	{Name: "sender", Type: "String", Codec: "ZSTD(1)"},
	{Name: "msg", Type: "String", Codec: "ZSTD(3)"},
	{Name: "reply", Type: "String", Codec: "ZSTD(3)"},
	{Name: "funds", Type: "String", Codec: "ZSTD(1)"},
	{Name: "response", Type: "String", Codec: "ZSTD(3)"},
	{Name: "gas_used", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "tx_index", Type: "UInt32", Codec: "Delta, LZ4"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// WasmTxEvent records one transaction executed against a contract.
// Msg, Reply, Funds and Response hold JSON; Reply is empty for top-level
// executions.
type WasmTxEvent struct {
	ContractAddress string `ch:"contract_address" json:"contractAddress"`
	Action          string `ch:"action" json:"action"`
	Sender          string `ch:"sender" json:"sender"`
	Msg             string `ch:"msg" json:"msg"`
	Reply           string `ch:"reply" json:"reply,omitempty"`
	Funds           string `ch:"funds" json:"funds"`
	Response        string `ch:"response" json:"response,omitempty"`
	GasUsed         uint64 `ch:"gas_used" json:"gasUsed"`
	TxIndex         uint32 `ch:"tx_index" json:"txIndex"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}
