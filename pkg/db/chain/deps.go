package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainview-network/chainview/pkg/compute"
	"github.com/chainview-network/chainview/pkg/db/clickhouse"
	chainmodels "github.com/chainview-network/chainview/pkg/db/models/chain"
)

// depScan is the per-table fragment of a dependency-change query: which
// table to scan, which column carries the height, and the OR'ed conditions
// of every dependent key routed to it.
type depScan struct {
	table     string
	heightCol string
	conds     []string
	args      []any
}

// AnyDependencyChange reports whether any dependency has a row with
// afterHeight < height <= uptoHeight.
func (db *DB) AnyDependencyChange(ctx context.Context, deps []compute.DependentKey, afterHeight, uptoHeight uint64) (bool, error) {
	scans, err := buildDepScans(deps)
	if err != nil {
		return false, err
	}
	for _, scan := range scans {
		where := scan.whereClause()
		query := fmt.Sprintf(`
			SELECT 1
			FROM "%s"."%s"
			WHERE %s > ? AND %s <= ? %s
			LIMIT 1
		`, db.Name, scan.table, scan.heightCol, scan.heightCol, where)

		args := append([]any{afterHeight, uptoHeight}, scan.args...)
		var one uint8
		err := db.QueryRow(ctx, query, args...).Scan(&one)
		if err != nil {
			if clickhouse.IsNoRows(err) {
				continue
			}
			return false, fmt.Errorf("scan %s for dependency change: %w", scan.table, err)
		}
		return true, nil
	}
	return false, nil
}

// NextDependencyChange returns the minimum height strictly greater than
// afterHeight at which any dependency changes.
func (db *DB) NextDependencyChange(ctx context.Context, deps []compute.DependentKey, afterHeight uint64) (uint64, bool, error) {
	scans, err := buildDepScans(deps)
	if err != nil {
		return 0, false, err
	}
	var best uint64
	found := false
	for _, scan := range scans {
		where := scan.whereClause()
		query := fmt.Sprintf(`
			SELECT %s
			FROM "%s"."%s"
			WHERE %s > ? %s
			ORDER BY %s ASC
			LIMIT 1
		`, scan.heightCol, db.Name, scan.table, scan.heightCol, where, scan.heightCol)

		args := append([]any{afterHeight}, scan.args...)
		var height uint64
		err := db.QueryRow(ctx, query, args...).Scan(&height)
		if err != nil {
			if clickhouse.IsNoRows(err) {
				continue
			}
			return 0, false, fmt.Errorf("scan %s for next dependency change: %w", scan.table, err)
		}
		if !found || height < best {
			best = height
			found = true
		}
	}
	return best, found, nil
}

func (s *depScan) whereClause() string {
	if len(s.conds) == 0 {
		return ""
	}
	return "AND (" + strings.Join(s.conds, " OR ") + ")"
}

// buildDepScans groups dependent keys by namespace and translates each into
// table conditions. An empty condition list for a present namespace means
// "any row in the table matches".
func buildDepScans(deps []compute.DependentKey) ([]depScan, error) {
	byTable := map[string]*depScan{}
	scanFor := func(table, heightCol string) *depScan {
		if s, ok := byTable[table]; ok {
			return s
		}
		s := &depScan{table: table, heightCol: heightCol}
		byTable[table] = s
		return s
	}
	// matchAll marks tables where some dependency matches every row; their
	// accumulated conditions become irrelevant.
	matchAll := map[string]bool{}

	for _, dep := range deps {
		switch dep.Namespace() {
		case compute.NamespaceWasmState:
			addr, key, err := splitSubject(dep, 2)
			if err != nil {
				return nil, err
			}
			s := scanFor(chainmodels.WasmStateEventsTableName, "block_height")
			if dep.Prefix {
				s.conds = append(s.conds, "(contract_address = ? AND startsWith(key, ?))")
			} else {
				s.conds = append(s.conds, "(contract_address = ? AND key = ?)")
			}
			s.args = append(s.args, addr, key)

		case compute.NamespaceWasmTransformation:
			addr, name, err := splitSubject(dep, 2)
			if err != nil {
				return nil, err
			}
			s := scanFor(chainmodels.WasmStateEventTransformationsTableName, "block_height")
			var conds []string
			if addr != "*" {
				conds = append(conds, "contract_address = ?")
				s.args = append(s.args, addr)
			}
			switch {
			case strings.Contains(name, "*"):
				conds = append(conds, "name LIKE ?")
				s.args = append(s.args, compute.GlobToLike(name))
			case dep.Prefix:
				conds = append(conds, "startsWith(name, ?)")
				s.args = append(s.args, name)
			default:
				conds = append(conds, "name = ?")
				s.args = append(s.args, name)
			}
			s.conds = append(s.conds, "("+strings.Join(conds, " AND ")+")")

		case compute.NamespaceWasmTx:
			addr := strings.TrimSuffix(dep.Rest(), ":")
			s := scanFor(chainmodels.WasmTxEventsTableName, "block_height")
			s.conds = append(s.conds, "(contract_address = ?)")
			s.args = append(s.args, addr)

		case compute.NamespaceBankState:
			s := scanFor(chainmodels.BankStateEventsTableName, "block_height")
			if dep.Prefix {
				addr := strings.TrimSuffix(dep.Rest(), ":")
				s.conds = append(s.conds, "(address = ?)")
				s.args = append(s.args, addr)
			} else {
				addr, denom, err := splitSubject(dep, 2)
				if err != nil {
					return nil, err
				}
				s.conds = append(s.conds, "(address = ? AND denom = ?)")
				s.args = append(s.args, addr, denom)
			}

		case compute.NamespaceBankBalance:
			s := scanFor(chainmodels.BankBalancesTableName, "block_height")
			s.conds = append(s.conds, "(address = ?)")
			s.args = append(s.args, dep.Rest())

		case compute.NamespaceStakingSlash:
			addr := strings.TrimSuffix(dep.Rest(), ":")
			s := scanFor(chainmodels.StakingSlashEventsTableName, "registered_block_height")
			s.conds = append(s.conds, "(validator_operator_address = ?)")
			s.args = append(s.args, addr)

		case compute.NamespaceGovProposal:
			s := scanFor(chainmodels.GovProposalsTableName, "block_height")
			id := strings.TrimSuffix(dep.Rest(), ":")
			if dep.Prefix && id == "" {
				matchAll[s.table] = true
			} else {
				s.conds = append(s.conds, "(proposal_id = ?)")
				s.args = append(s.args, id)
			}

		case compute.NamespaceGovVote:
			s := scanFor(chainmodels.GovProposalVotesTableName, "block_height")
			if dep.Prefix {
				id := strings.TrimSuffix(dep.Rest(), ":")
				if id == "" {
					matchAll[s.table] = true
				} else {
					s.conds = append(s.conds, "(proposal_id = ?)")
					s.args = append(s.args, id)
				}
			} else {
				id, voter, err := splitSubject(dep, 2)
				if err != nil {
					return nil, err
				}
				s.conds = append(s.conds, "(proposal_id = ? AND voter_address = ?)")
				s.args = append(s.args, id, voter)
			}

		case compute.NamespaceCommunityPool:
			s := scanFor(chainmodels.CommunityPoolStateEventsTableName, "block_height")
			matchAll[s.table] = true

		case compute.NamespaceExtraction:
			addr, name, err := splitSubject(dep, 2)
			if err != nil {
				return nil, err
			}
			s := scanFor(chainmodels.ExtractionsTableName, "block_height")
			s.conds = append(s.conds, "(address = ? AND name = ?)")
			s.args = append(s.args, addr, name)

		case compute.NamespaceFeegrant:
			granter, grantee, err := splitSubject(dep, 2)
			if err != nil {
				return nil, err
			}
			s := scanFor(chainmodels.FeegrantAllowancesTableName, "block_height")
			var conds []string
			// "*" is the either-side sentinel, not a glob.
			if granter != compute.FeegrantEitherSide {
				conds = append(conds, "granter = ?")
				s.args = append(s.args, granter)
			}
			if grantee != compute.FeegrantEitherSide {
				conds = append(conds, "grantee = ?")
				s.args = append(s.args, grantee)
			}
			if len(conds) == 0 {
				matchAll[s.table] = true
			} else {
				s.conds = append(s.conds, "("+strings.Join(conds, " AND ")+")")
			}

		default:
			return nil, fmt.Errorf("%w: unknown dependency namespace %q", compute.ErrTypeMismatch, dep.Namespace())
		}
	}

	out := make([]depScan, 0, len(byTable))
	for table, s := range byTable {
		if matchAll[table] {
			s.conds = nil
			s.args = nil
		}
		out = append(out, *s)
	}
	return out, nil
}

// splitSubject splits the post-namespace part of a dependent key into
// exactly n leading segments; the last segment keeps any further colons.
func splitSubject(dep compute.DependentKey, n int) (string, string, error) {
	parts := strings.SplitN(dep.Rest(), ":", n)
	if len(parts) != n {
		return "", "", fmt.Errorf("%w: malformed dependent key %q", compute.ErrTypeMismatch, dep.Key)
	}
	return parts[0], parts[1], nil
}
