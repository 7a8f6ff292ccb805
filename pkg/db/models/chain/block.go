package chain

import (
	"time"
)

const BlocksTableName = "blocks"
const StateTableName = "state"

// BlockColumns defines the schema for the blocks table.
// DoubleDelta compresses the two monotonic columns extremely well.
var BlockColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// Block identifies a chain state: a monotonic height and the wall-clock
// timestamp the block was produced at. The pair is always consistent.
type Block struct {
	Height     uint64 `ch:"height" json:"height"`
	TimeUnixMs uint64 `ch:"time_unix_ms" json:"timeUnixMs"`
}

// Time returns the block timestamp as a time.Time in UTC.
func (b Block) Time() time.Time {
	return time.UnixMilli(int64(b.TimeUnixMs)).UTC()
}

// StateColumns defines the schema for the singleton state table.
var StateColumns = []ColumnDef{
	{Name: "id", Type: "UInt8"},
	{Name: "chain_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "latest_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "latest_block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// State is the exporter-maintained singleton describing the chain and the
// highest block it has fully ingested. Readers treat LatestBlock as the
// freshness horizon for every query.
type State struct {
	ChainID               string `ch:"chain_id" json:"chainId"`
	LatestBlockHeight     uint64 `ch:"latest_block_height" json:"latestBlockHeight"`
	LatestBlockTimeUnixMs uint64 `ch:"latest_block_time_unix_ms" json:"latestBlockTimeUnixMs"`
}

// LatestBlock returns the visible chain head as a Block.
func (s State) LatestBlock() Block {
	return Block{Height: s.LatestBlockHeight, TimeUnixMs: s.LatestBlockTimeUnixMs}
}
