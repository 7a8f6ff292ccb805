package chain

const ContractsTableName = "contracts"

// ContractColumns defines the schema for the contracts table.
var ContractColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "code_id", Type: "UInt64", Codec: "Delta, LZ4"},
	{Name: "admin", Type: "String", Codec: "ZSTD(1)"},
	{Name: "creator", Type: "String", Codec: "ZSTD(1)"},
	{Name: "label", Type: "String", Codec: "ZSTD(1)"},
	{Name: "instantiated_at_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "instantiated_at_block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// Contract is the registry row for an instantiated contract. CodeID drives
// formula applicability filters and the bank-history fallback set.
type Contract struct {
	Address                       string `ch:"address" json:"address"`
	CodeID                        uint64 `ch:"code_id" json:"codeId"`
	Admin                         string `ch:"admin" json:"admin,omitempty"`
	Creator                       string `ch:"creator" json:"creator,omitempty"`
	Label                         string `ch:"label" json:"label,omitempty"`
	InstantiatedAtBlockHeight     uint64 `ch:"instantiated_at_block_height" json:"instantiatedAtBlockHeight"`
	InstantiatedAtBlockTimeUnixMs uint64 `ch:"instantiated_at_block_time_unix_ms" json:"instantiatedAtBlockTimeUnixMs"`
}
