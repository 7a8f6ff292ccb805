package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

const govProposalCols = "proposal_id, data, block_height, block_time_unix_ms"
const govVoteCols = "proposal_id, voter_address, data, block_height, block_time_unix_ms"

// ProposalLatest returns the most recent snapshot of a proposal at-or-below
// the target height.
func (db *DB) ProposalLatest(ctx context.Context, proposalID string, height uint64) (*chainmodels.GovProposal, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE proposal_id = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, govProposalCols, db.Name, chainmodels.GovProposalsTableName)

	var row chainmodels.GovProposal
	err := db.QueryRow(ctx, query, proposalID, height).Scan(
		&row.ProposalID, &row.Data, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query proposal: %w", err)
	}
	return &row, nil
}

// ProposalsLatest pages through the latest snapshot per proposal. To bound
// memory the page of (id, height) pairs is selected first and only those
// full rows are fetched.
func (db *DB) ProposalsLatest(ctx context.Context, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposal, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	limitClause := ""
	args := []any{height}
	if limit > 0 {
		limitClause = "LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	pageQuery := fmt.Sprintf(`
		SELECT proposal_id, max(block_height) AS h
		FROM "%s"."%s"
		WHERE block_height <= ?
		GROUP BY proposal_id
		ORDER BY toUInt64OrZero(proposal_id) %s
		%s
	`, db.Name, chainmodels.GovProposalsTableName, direction, limitClause)

	page, err := db.scanKeyHeightPage(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query proposal page: %w", err)
	}
	if len(page) == 0 {
		return []chainmodels.GovProposal{}, nil
	}

	conds := make([]string, 0, len(page))
	fetchArgs := make([]any, 0, 2*len(page))
	for _, p := range page {
		conds = append(conds, "(proposal_id = ? AND block_height = ?)")
		fetchArgs = append(fetchArgs, p.key, p.height)
	}
	fetchQuery := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE %s
	`, govProposalCols, db.Name, chainmodels.GovProposalsTableName, strings.Join(conds, " OR "))

	rows, err := db.Query(ctx, fetchQuery, fetchArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetch proposal page rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]chainmodels.GovProposal, len(page))
	for rows.Next() {
		var row chainmodels.GovProposal
		if err := rows.Scan(&row.ProposalID, &row.Data, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan proposal row: %w", err)
		}
		byID[row.ProposalID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal rows: %w", err)
	}

	// Preserve the page ordering.
	out := make([]chainmodels.GovProposal, 0, len(page))
	for _, p := range page {
		if row, ok := byID[p.key]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// ProposalCount returns the number of distinct proposals visible at the
// target height.
func (db *DB) ProposalCount(ctx context.Context, height uint64) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT uniqExact(proposal_id)
		FROM "%s"."%s"
		WHERE block_height <= ?
	`, db.Name, chainmodels.GovProposalsTableName)

	var count uint64
	if err := db.QueryRow(ctx, query, height).Scan(&count); err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return count, nil
}

// ProposalVoteLatest returns a voter's latest vote on a proposal.
func (db *DB) ProposalVoteLatest(ctx context.Context, proposalID, voter string, height uint64) (*chainmodels.GovProposalVote, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE proposal_id = ? AND voter_address = ? AND block_height <= ?
		ORDER BY block_height DESC
		LIMIT 1
	`, govVoteCols, db.Name, chainmodels.GovProposalVotesTableName)

	var row chainmodels.GovProposalVote
	err := db.QueryRow(ctx, query, proposalID, voter, height).Scan(
		&row.ProposalID, &row.VoterAddress, &row.Data, &row.BlockHeight, &row.BlockTimeUnixMs)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query proposal vote: %w", err)
	}
	return &row, nil
}

// ProposalVotesLatest pages through the latest vote per voter on a
// proposal. Pagination runs after the distinct-on-voter projection; equal
// heights tie-break by voter address ascending.
func (db *DB) ProposalVotesLatest(ctx context.Context, proposalID string, height uint64, ascending bool, limit, offset uint64) ([]chainmodels.GovProposalVote, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	limitClause := ""
	args := []any{proposalID, height}
	if limit > 0 {
		limitClause = "LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	pageQuery := fmt.Sprintf(`
		SELECT voter_address, max(block_height) AS h
		FROM "%s"."%s"
		WHERE proposal_id = ? AND block_height <= ?
		GROUP BY voter_address
		ORDER BY h %s, voter_address ASC
		%s
	`, db.Name, chainmodels.GovProposalVotesTableName, direction, limitClause)

	page, err := db.scanKeyHeightPage(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query vote page: %w", err)
	}
	if len(page) == 0 {
		return []chainmodels.GovProposalVote{}, nil
	}

	conds := make([]string, 0, len(page))
	fetchArgs := []any{proposalID}
	for _, p := range page {
		conds = append(conds, "(voter_address = ? AND block_height = ?)")
		fetchArgs = append(fetchArgs, p.key, p.height)
	}
	fetchQuery := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		WHERE proposal_id = ? AND (%s)
	`, govVoteCols, db.Name, chainmodels.GovProposalVotesTableName, strings.Join(conds, " OR "))

	rows, err := db.Query(ctx, fetchQuery, fetchArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetch vote page rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byVoter := make(map[string]chainmodels.GovProposalVote, len(page))
	for rows.Next() {
		var row chainmodels.GovProposalVote
		if err := rows.Scan(&row.ProposalID, &row.VoterAddress, &row.Data, &row.BlockHeight, &row.BlockTimeUnixMs); err != nil {
			return nil, fmt.Errorf("scan vote row: %w", err)
		}
		byVoter[row.VoterAddress] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote rows: %w", err)
	}

	out := make([]chainmodels.GovProposalVote, 0, len(page))
	for _, p := range page {
		if row, ok := byVoter[p.key]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// ProposalVoteCount returns the number of distinct voters on a proposal.
func (db *DB) ProposalVoteCount(ctx context.Context, proposalID string, height uint64) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT uniqExact(voter_address)
		FROM "%s"."%s"
		WHERE proposal_id = ? AND block_height <= ?
	`, db.Name, chainmodels.GovProposalVotesTableName)

	var count uint64
	if err := db.QueryRow(ctx, query, proposalID, height).Scan(&count); err != nil {
		return 0, fmt.Errorf("count proposal votes: %w", err)
	}
	return count, nil
}

type keyHeight struct {
	key    string
	height uint64
}

func (db *DB) scanKeyHeightPage(ctx context.Context, query string, args ...any) ([]keyHeight, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	page := make([]keyHeight, 0)
	for rows.Next() {
		var p keyHeight
		if err := rows.Scan(&p.key, &p.height); err != nil {
			return nil, err
		}
		page = append(page, p)
	}
	return page, rows.Err()
}
