package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// ProposalStore implements storage.ProposalStore using PostgreSQL.
type ProposalStore struct {
	pool *Pool
}

// NewProposalStore creates a new ProposalStore.
func NewProposalStore(pool *Pool) *ProposalStore {
	return &ProposalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProposalStore = (*ProposalStore)(nil)

const proposalColumns = `
	proposal_id, pool_id, proposer, proposal_type, payload,
	approval_threshold, voting_deadline, total_vote_power,
	votes_for, votes_against,
	for_vote_power, against_vote_power, for_vote_count, against_vote_count,
	status, result, deleted, version, created_at, updated_at`

// Create inserts a new proposal. Returns ErrDuplicateKey if proposal_id exists.
func (s *ProposalStore) Create(ctx context.Context, p *domain.Proposal) error {
	if p == nil || p.ProposalID == "" || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	payload, votesFor, votesAgainst, result, err := marshalProposalJSON(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pool_proposals (
			proposal_id, pool_id, proposer, proposal_type, payload,
			approval_threshold, voting_deadline, total_vote_power,
			votes_for, votes_against,
			for_vote_power, against_vote_power, for_vote_count, against_vote_count,
			status, result, deleted, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1
		)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ProposalID, p.PoolID, p.Proposer, string(p.Type), payload,
		p.ApprovalThreshold, p.VotingDeadline, p.TotalVotePower,
		votesFor, votesAgainst,
		p.ForVotePower, p.AgainstVotePower, p.ForVoteCount, p.AgainstVoteCount,
		string(p.Status), result, p.Deleted,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert proposal: %w", err)
	}

	p.Version = 1
	return nil
}

// GetByID retrieves a proposal by its ID.
func (s *ProposalStore) GetByID(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	query := `SELECT` + proposalColumns + `
		FROM pool_proposals
		WHERE proposal_id = $1 AND NOT deleted
	`

	row := s.pool.QueryRow(ctx, query, proposalID)
	p, err := scanProposal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get proposal by id: %w", err)
	}
	return p, nil
}

// Update writes the full proposal conditional on p.Version, then bumps it.
func (s *ProposalStore) Update(ctx context.Context, p *domain.Proposal) error {
	if p == nil || p.ProposalID == "" {
		return storage.ErrInvalidInput
	}

	payload, votesFor, votesAgainst, result, err := marshalProposalJSON(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE pool_proposals SET
			payload = $3,
			votes_for = $4, votes_against = $5,
			for_vote_power = $6, against_vote_power = $7,
			for_vote_count = $8, against_vote_count = $9,
			status = $10, result = $11,
			version = version + 1, updated_at = now()
		WHERE proposal_id = $1 AND version = $2 AND NOT deleted
		RETURNING version
	`

	var newVersion int64
	err = s.pool.QueryRow(ctx, query,
		p.ProposalID, p.Version, payload,
		votesFor, votesAgainst,
		p.ForVotePower, p.AgainstVotePower,
		p.ForVoteCount, p.AgainstVoteCount,
		string(p.Status), result,
	).Scan(&newVersion)
	if err != nil {
		if isNotFoundError(err) {
			var exists bool
			checkErr := s.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM pool_proposals WHERE proposal_id = $1 AND NOT deleted)`,
				p.ProposalID,
			).Scan(&exists)
			if checkErr != nil {
				return fmt.Errorf("update proposal existence check: %w", checkErr)
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("update proposal: %w", err)
	}

	p.Version = newVersion
	return nil
}

// GetByPool retrieves all non-deleted proposals for a pool, ordered by
// creation time ASC.
func (s *ProposalStore) GetByPool(ctx context.Context, poolID string) ([]*domain.Proposal, error) {
	query := `SELECT` + proposalColumns + `
		FROM pool_proposals
		WHERE pool_id = $1 AND NOT deleted
		ORDER BY created_at ASC, proposal_id ASC
	`
	return s.queryProposals(ctx, query, poolID)
}

// GetActiveBefore retrieves active proposals whose voting deadline is at or
// before the cutoff.
func (s *ProposalStore) GetActiveBefore(ctx context.Context, cutoff time.Time) ([]*domain.Proposal, error) {
	query := `SELECT` + proposalColumns + `
		FROM pool_proposals
		WHERE status = 'active' AND NOT deleted AND voting_deadline <= $1
		ORDER BY voting_deadline ASC, proposal_id ASC
	`
	return s.queryProposals(ctx, query, cutoff)
}

// SoftDelete marks a proposal deleted.
func (s *ProposalStore) SoftDelete(ctx context.Context, proposalID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pool_proposals SET deleted = TRUE, version = version + 1, updated_at = now()
		WHERE proposal_id = $1 AND NOT deleted
	`, proposalID)
	if err != nil {
		return fmt.Errorf("soft delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// queryProposals runs a multi-row proposal query.
func (s *ProposalStore) queryProposals(ctx context.Context, query string, args ...any) ([]*domain.Proposal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal row: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal rows: %w", err)
	}
	return proposals, nil
}

// marshalProposalJSON serializes the JSONB columns of a proposal.
func marshalProposalJSON(p *domain.Proposal) (payload, votesFor, votesAgainst, result []byte, err error) {
	payload, err = json.Marshal(p.Payload)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	votesFor, err = json.Marshal(orEmptyVotes(p.VotesFor))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal votes for: %w", err)
	}
	votesAgainst, err = json.Marshal(orEmptyVotes(p.VotesAgainst))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal votes against: %w", err)
	}
	if p.Result != nil {
		result, err = json.Marshal(p.Result)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return payload, votesFor, votesAgainst, result, nil
}

func orEmptyVotes(v []domain.Vote) []domain.Vote {
	if v == nil {
		return []domain.Vote{}
	}
	return v
}

// scanProposal scans a single row into a Proposal.
func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	var p domain.Proposal
	var proposalType, status string
	var payload, votesFor, votesAgainst, result []byte

	err := row.Scan(
		&p.ProposalID, &p.PoolID, &p.Proposer, &proposalType, &payload,
		&p.ApprovalThreshold, &p.VotingDeadline, &p.TotalVotePower,
		&votesFor, &votesAgainst,
		&p.ForVotePower, &p.AgainstVotePower, &p.ForVoteCount, &p.AgainstVoteCount,
		&status, &result, &p.Deleted, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = domain.ProposalType(proposalType)
	p.Status = domain.ProposalStatus(status)

	if err := json.Unmarshal(payload, &p.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := json.Unmarshal(votesFor, &p.VotesFor); err != nil {
		return nil, fmt.Errorf("unmarshal votes for: %w", err)
	}
	if err := json.Unmarshal(votesAgainst, &p.VotesAgainst); err != nil {
		return nil, fmt.Errorf("unmarshal votes against: %w", err)
	}
	if result != nil {
		p.Result = &domain.ExecutionResult{}
		if err := json.Unmarshal(result, p.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return &p, nil
}
