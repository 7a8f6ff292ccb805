package chain

const ComputationsTableName = "computations"

// ComputationColumns defines the schema for the computations table.
// The natural key is (target_address, formula_type, formula_name, args_hash,
// block_height); latest_block_height_valid doubles as the ReplacingMergeTree
// version column so that extending a record's validity is a plain re-insert.
var ComputationColumns = []ColumnDef{
	{Name: "target_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "formula_type", Type: "LowCardinality(String)"},
	{Name: "formula_name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "args", Type: "String", Codec: "ZSTD(1)"},
	{Name: "args_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "output", Type: "String", Codec: "ZSTD(3)"},
	{Name: "dep_event_keys", Type: "Array(String)", Codec: "ZSTD(1)"},
	{Name: "dep_event_prefixes", Type: "Array(UInt8)", Codec: "ZSTD(1)"},
	{Name: "dep_transformation_keys", Type: "Array(String)", Codec: "ZSTD(1)"},
	{Name: "dep_transformation_prefixes", Type: "Array(UInt8)", Codec: "ZSTD(1)"},
	{Name: "latest_block_height_valid", Type: "UInt64", Codec: "Delta, LZ4"},
}

// Computation is a memoised formula result together with the dependency set
// that produced it and the interval of blocks it provably holds for.
// Args is the canonical (key-sorted) JSON encoding of the formula arguments;
// ArgsHash is its blake2b digest and is what the natural key carries.
// Output is the JSON-encoded value, or the empty string when the formula
// returned nothing. Dependency keys and their prefix flags are paired
// arrays, index-aligned.
type Computation struct {
	TargetAddress             string   `ch:"target_address" json:"targetAddress"`
	FormulaType               string   `ch:"formula_type" json:"formulaType"`
	FormulaName               string   `ch:"formula_name" json:"formulaName"`
	Args                      string   `ch:"args" json:"args"`
	ArgsHash                  string   `ch:"args_hash" json:"argsHash"`
	BlockHeight               uint64   `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs           uint64   `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
	Output                    string   `ch:"output" json:"output"`
	DepEventKeys              []string `ch:"dep_event_keys" json:"depEventKeys"`
	DepEventPrefixes          []uint8  `ch:"dep_event_prefixes" json:"depEventPrefixes"`
	DepTransformationKeys     []string `ch:"dep_transformation_keys" json:"depTransformationKeys"`
	DepTransformationPrefixes []uint8  `ch:"dep_transformation_prefixes" json:"depTransformationPrefixes"`
	LatestBlockHeightValid    uint64   `ch:"latest_block_height_valid" json:"latestBlockHeightValid"`
}

// Block returns the computation's anchor block.
func (c *Computation) Block() Block {
	return Block{Height: c.BlockHeight, TimeUnixMs: c.BlockTimeUnixMs}
}
