package chain

const GovProposalsTableName = "gov_proposals"
const GovProposalVotesTableName = "gov_proposal_votes"

// GovProposalColumns defines the schema for the gov_proposals table.
var GovProposalColumns = []ColumnDef{
	{Name: "proposal_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "data", Type: "String", Codec: "ZSTD(3)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// GovProposal is one historical snapshot of a governance proposal. The
// proposal id is the chain's decimal id kept as a string; ordering by id is
// numeric (cast in SQL) so "10" sorts after "9".
type GovProposal struct {
	ProposalID      string `ch:"proposal_id" json:"proposalId"`
	Data            string `ch:"data" json:"data"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}

// GovProposalVoteColumns defines the schema for the gov_proposal_votes table.
var GovProposalVoteColumns = []ColumnDef{
	{Name: "proposal_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "voter_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "data", Type: "String", Codec: "ZSTD(3)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_time_unix_ms", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

// GovProposalVote is one historical vote cast by a voter on a proposal.
// A voter changing their vote appends a new row at the later height.
type GovProposalVote struct {
	ProposalID      string `ch:"proposal_id" json:"proposalId"`
	VoterAddress    string `ch:"voter_address" json:"voterAddress"`
	Data            string `ch:"data" json:"data"`
	BlockHeight     uint64 `ch:"block_height" json:"blockHeight"`
	BlockTimeUnixMs uint64 `ch:"block_time_unix_ms" json:"blockTimeUnixMs"`
}
